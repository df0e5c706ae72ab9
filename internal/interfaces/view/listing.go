package view

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/dreschagin/staticserve/internal/domain/entity"
)

// Listing renders a directory index page for dir containing the given
// entries. Entries are expected pre-sorted, directories first.
func Listing(dir string, entries []*entity.Asset) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder

		title := templ.EscapeString(dir)
		b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
		b.WriteString("<meta charset=\"utf-8\">\n")
		fmt.Fprintf(&b, "<title>Index of %s</title>\n", title)
		b.WriteString("<style>body{font-family:monospace;margin:2em}table{border-collapse:collapse}td{padding:0 1.5em 0 0}a{text-decoration:none}</style>\n")
		b.WriteString("</head>\n<body>\n")
		fmt.Fprintf(&b, "<h1>Index of %s</h1>\n", title)
		b.WriteString("<table>\n")

		if dir != "/" {
			b.WriteString("<tr><td><a href=\"../\">../</a></td><td></td><td></td></tr>\n")
		}

		for _, asset := range entries {
			name := asset.Name()
			href := templ.EscapeString(name)
			label := templ.EscapeString(name)
			if asset.IsDir() {
				fmt.Fprintf(&b, "<tr><td><a href=\"%s/\">%s/</a></td><td>-</td><td>%s</td></tr>\n",
					href, label, asset.ModTime().UTC().Format("2006-01-02 15:04"))
			} else {
				fmt.Fprintf(&b, "<tr><td><a href=\"%s\">%s</a></td><td>%d</td><td>%s</td></tr>\n",
					href, label, asset.Size(), asset.ModTime().UTC().Format("2006-01-02 15:04"))
			}
		}

		b.WriteString("</table>\n</body>\n</html>\n")

		_, err := io.WriteString(w, b.String())
		return err
	})
}
