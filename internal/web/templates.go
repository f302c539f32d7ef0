package web

import (
	"fmt"
	"html/template"

	"github.com/gin-contrib/multitemplate"
)

const layoutTmpl = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>vid2gif{{with .Title}} · {{.}}{{end}}</title>
<style>
body { font-family: sans-serif; max-width: 760px; margin: 2rem auto; padding: 0 1rem; }
.error { color: #b00020; }
.stats { color: #555; font-size: .9rem; }
video, img { max-width: 100%; }
label { display: inline-block; margin-right: 1rem; }
</style>
</head>
<body>
<h1><a href="/">vid2gif</a></h1>
{{with .Error}}<p class="error">{{.}}</p>{{end}}
{{template "content" .}}
</body>
</html>`

const indexTmpl = `{{define "content"}}
<form action="/upload" method="post" enctype="multipart/form-data">
  <p>Upload a video (mp4, avi, mov, mkv, up to {{formatBytes .MaxUpload}}).</p>
  <input type="file" name="video" accept=".mp4,.avi,.mov,.mkv" required>
  <button type="submit">Upload</button>
</form>
{{end}}`

const workspaceTmpl = `{{define "content"}}
<video src="/w/{{.ID}}/video" controls preload="metadata"></video>
<form action="/w/{{.ID}}/convert" method="post">
  <label>Start (s) <input type="number" name="start" min="0" step="0.1" value="{{.Start}}"></label>
  <label>End (s) <input type="number" name="end" min="0.1" step="0.1" value="{{.End}}"></label>
  <label>Speed <input type="number" name="speed" min="0.1" max="10" step="0.1" value="{{.Speed}}"></label>
  <button type="submit">Create GIF</button>
</form>
{{if .HasGIF}}
<h2>Result</h2>
<img src="/w/{{.ID}}/gif?v={{.Version}}" alt="generated gif">
<p class="stats">{{.Stats.Frames}} frames at {{printf "%.2f" .Stats.OutputFPS}} fps, {{.Stats.Width}}x{{.Stats.Height}}, {{formatBytes .Stats.Bytes}}</p>
<p><a href="/w/{{.ID}}/gif/download">Download output.gif</a></p>
{{end}}
<form action="/w/{{.ID}}/release" method="post"><button type="submit">Start over</button></form>
{{end}}`

const errorTmpl = `{{define "content"}}<p><a href="/">Back to upload</a></p>{{end}}`

func createTemplateRenderer() multitemplate.Render {
	funcs := template.FuncMap{
		"formatBytes": formatBytes,
	}
	r := multitemplate.New()
	r.AddFromStringsFuncs("index", funcs, layoutTmpl, indexTmpl)
	r.AddFromStringsFuncs("workspace", funcs, layoutTmpl, workspaceTmpl)
	r.AddFromStringsFuncs("error", funcs, layoutTmpl, errorTmpl)
	return r
}

func formatBytes(n any) string {
	var b int64
	switch v := n.(type) {
	case int:
		b = int64(v)
	case int64:
		b = v
	default:
		return fmt.Sprint(n)
	}
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
