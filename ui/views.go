package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
	"github.com/iancoleman/strcase"

	"github.com/preslavrachev/rqlitestore/core"
)

const pageStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#222}` +
	`table{border-collapse:collapse;margin-top:1rem}` +
	`th,td{border:1px solid #ccc;padding:.3rem .6rem;text-align:left;vertical-align:top}` +
	`th{background:#f4f4f4}td.null{color:#999;font-style:italic}` +
	`nav a{margin-right:1rem}`

// layout wraps body in the shared page chrome
func layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w,
			"<!DOCTYPE html><html lang=\"en\"><head><meta charset=\"utf-8\"><title>%s</title><style>%s</style></head><body>",
			templ.EscapeString(title), pageStyle); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</body></html>")
		return err
	})
}

// indexPage lists the configuration and the registered entities
func indexPage(dump IndexDump) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<h1>rqlite-store</h1>")

		b.WriteString("<h2>Configuration</h2><table>")
		cfg := dump.Config
		writeRow(&b, "endpoint", cfg.BaseURL())
		writeRow(&b, "consistency level", cfg.ConsistencyLevel)
		writeRow(&b, "max redirects", fmt.Sprint(cfg.MaxRedirects))
		writeRow(&b, "timeout", cfg.Timeout.String())
		writeRow(&b, "merge", fmt.Sprint(cfg.Merge))
		writeRow(&b, "ignore no such table", fmt.Sprint(cfg.IgnoreNoSuchTableError))
		writeRow(&b, "prefix", cfg.Prefix)
		b.WriteString("</table>")

		b.WriteString("<h2>Entities</h2>")
		if len(dump.Entities) == 0 {
			b.WriteString("<p>No entities registered.</p>")
		} else {
			b.WriteString("<table><tr><th>ref</th><th>table</th></tr>")
			for _, e := range dump.Entities {
				fmt.Fprintf(&b, "<tr><td><a href=\"%s\">%s</a></td><td>%s</td></tr>",
					templ.EscapeString(e.URL), templ.EscapeString(e.Ref), templ.EscapeString(e.Table))
			}
			b.WriteString("</table>")
		}

		_, err := io.WriteString(w, b.String())
		return err
	})
	return layout("rqlite-store dump", body)
}

// entityPage renders one page of rows
func entityPage(prefix string, dump EntityDump) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, "<nav><a href=\"%s\">&larr; all entities</a></nav>",
			templ.EscapeString(strings.TrimSuffix(prefix, "/")+"/dump"))
		fmt.Fprintf(&b, "<h1>%s</h1><p>table <code>%s</code>, rows %d&ndash;%d</p>",
			templ.EscapeString(dump.Ref), templ.EscapeString(dump.Table),
			dump.Offset+min(1, len(dump.Rows)), dump.Offset+len(dump.Rows))

		if len(dump.Rows) == 0 {
			b.WriteString("<p>No rows.</p>")
		} else {
			b.WriteString("<table><tr>")
			for _, column := range dump.Columns {
				fmt.Fprintf(&b, "<th title=\"%s\">%s</th>", templ.EscapeString(column), templ.EscapeString(columnLabel(column)))
			}
			b.WriteString("</tr>")
			for _, row := range dump.Rows {
				b.WriteString("<tr>")
				for _, column := range dump.Columns {
					writeCell(&b, row, column)
				}
				b.WriteString("</tr>")
			}
			b.WriteString("</table>")
		}

		b.WriteString("<nav>")
		if dump.Prev != "" {
			fmt.Fprintf(&b, "<a href=\"%s\">previous</a>", templ.EscapeString(dump.Prev))
		}
		if dump.Next != "" {
			fmt.Fprintf(&b, "<a href=\"%s\">next</a>", templ.EscapeString(dump.Next))
		}
		b.WriteString("</nav>")

		_, err := io.WriteString(w, b.String())
		return err
	})
	return layout(dump.Ref+" - rqlite-store dump", body)
}

// errorPage renders an error message
func errorPage(status int, message string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, "<h1>%d</h1><p>%s</p>", status, templ.EscapeString(message))
		return err
	})
	return layout("rqlite-store dump", body)
}

// columnLabel turns a column name such as "createdAt" or "created_at" into "created at"
func columnLabel(column string) string {
	return strcase.ToDelimited(column, ' ')
}

func writeRow(b *strings.Builder, key, value string) {
	fmt.Fprintf(b, "<tr><th>%s</th><td>%s</td></tr>", templ.EscapeString(key), templ.EscapeString(value))
}

func writeCell(b *strings.Builder, row core.Entity, column string) {
	value, ok := row[column]
	if !ok || value == nil {
		b.WriteString("<td class=\"null\">NULL</td>")
		return
	}
	fmt.Fprintf(b, "<td>%s</td>", templ.EscapeString(fmt.Sprint(value)))
}
