package views

import (
	"errors"
	"html/template"
	"io"
	"io/fs"
)

var pageTmpl *template.Template

// loadTemplatesFromFS parses every page in dir. Tests use it with a MapFS to
// exercise the failure paths.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	pageTmpl, err = template.ParseFS(sub, "*.html")
	if err != nil {
		return err
	}
	return nil
}

// LoadTemplates loads the embedded templates. Call during startup before
// serving requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

// DefaultDays is the statistics window shown when the page has no days param.
const DefaultDays = "7"

// VisualizationData is the view model for the chart page. City and Days are
// echoed back into the filter form and read by the page script.
type VisualizationData struct {
	City string
	Days string
}

func (VisualizationData) Title() string { return "Weather Visualization" }

func RenderVisualization(w io.Writer, data *VisualizationData) error {
	if pageTmpl == nil {
		return errors.New("visualization template not loaded: call views.LoadTemplates during startup")
	}
	if data == nil {
		data = &VisualizationData{Days: DefaultDays}
	}
	return pageTmpl.ExecuteTemplate(w, "visualization.html", data)
}
