package controller

import (
	"net/http"

	"weathervision/internal/modules/weather/service"
)

type WeatherController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type weatherControllerImpl struct {
	service *service.Service
}

func NewWeatherController(svc *service.Service) WeatherController {
	return &weatherControllerImpl{service: svc}
}

func (c *weatherControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/{$}", c.handleAPIRoot)

	mux.HandleFunc("GET /api/records/{$}", c.handleList)
	mux.HandleFunc("POST /api/records/{$}", c.handleCreate)
	mux.HandleFunc("GET /api/records/latest/{$}", c.handleLatest)
	mux.HandleFunc("GET /api/records/by_city/{$}", c.handleByCity)
	mux.HandleFunc("POST /api/records/fetch_from_api/{$}", c.handleFetchFromAPI)
	mux.HandleFunc("GET /api/records/statistics/{$}", c.handleStatistics)

	mux.HandleFunc("GET /api/records/{id}/{$}", c.handleRetrieve)
	mux.HandleFunc("PUT /api/records/{id}/{$}", c.handleUpdate)
	mux.HandleFunc("PATCH /api/records/{id}/{$}", c.handlePartialUpdate)
	mux.HandleFunc("DELETE /api/records/{id}/{$}", c.handleDelete)

	mux.HandleFunc("GET /api/visualization/{$}", c.handleVisualization)
}
