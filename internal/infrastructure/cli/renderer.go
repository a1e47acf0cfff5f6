package cli

import (
	"io"

	"github.com/goccy/go-json"

	"github.com/doeshing/orca-go/internal/domain"
)

// RenderResponse writes the response as a single JSON document.
func RenderResponse(w io.Writer, resp domain.Response, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(resp)
}
