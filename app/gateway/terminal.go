package gateway

import (
	"embed"
	"net/http"
)

//go:embed static/terminal.html
var staticFS embed.FS

// serveTerminalPage writes the embedded terminal UI. The page carries no
// secrets: the capability token stays in the query string the browser
// already holds and the page hands it straight back on the upgrade.
func (a *App) serveTerminalPage(w http.ResponseWriter) {
	page, err := staticFS.ReadFile("static/terminal.html")
	if err != nil {
		http.Error(w, "terminal page unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}
