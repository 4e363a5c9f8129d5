package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"weathervision/internal/utils"
)

const maxListLimit = 1000

const (
	msgNotFound       = "Not found."
	msgNoRecords      = "No weather records found."
	msgCityParam      = "Please provide a city parameter."
	msgCityRequired   = "City parameter is required."
	msgInvalidDays    = "Invalid days parameter. Must be a number."
	msgNoData         = "No data found for the specified filters."
	msgInvalidJSON    = "invalid JSON body"
	msgInvalidRecord  = "invalid record"
	msgInternalServer = "internal server error"
)

// parseRecordID returns false for anything but a positive base-10 id.
func parseRecordID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parseListQuery reads the optional limit and offset. A zero limit means all records.
func parseListQuery(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if s := q.Get("limit"); s != "" {
		n, convErr := strconv.Atoi(s)
		if convErr != nil {
			return 0, 0, errors.New("invalid 'limit' (expected integer)")
		}
		if n <= 0 {
			return 0, 0, errors.New("'limit' must be > 0")
		}
		if n > maxListLimit {
			return 0, 0, errors.New("'limit' must be <= 1000")
		}
		limit = n
	}
	if s := q.Get("offset"); s != "" {
		n, convErr := strconv.Atoi(s)
		if convErr != nil {
			return 0, 0, errors.New("invalid 'offset' (expected integer)")
		}
		if n < 0 {
			return 0, 0, errors.New("'offset' must be >= 0")
		}
		offset = n
	}
	return limit, offset, nil
}

// decodeBody decodes a JSON request body into dst and writes the 400 itself
// when that fails. A field with the wrong JSON type is reported per field.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := utils.DecodeJSON(w, r, dst)
	if err == nil {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		utils.WriteFieldErrors(w, msgInvalidRecord, map[string]string{
			typeErr.Field: "must be a " + jsonKind(typeErr.Type.Kind().String()),
		})
		return false
	}
	utils.WriteError(w, http.StatusBadRequest, msgInvalidJSON)
	return false
}

func jsonKind(goKind string) string {
	switch goKind {
	case "int", "int64", "float64":
		return "number"
	case "string":
		return "string"
	case "struct":
		return "timestamp"
	default:
		return goKind
	}
}
