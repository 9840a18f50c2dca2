package export

// pageTemplate is the html/template for each documentation page.
const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Title}} · {{.SiteTitle}}</title>
  <link rel="stylesheet" href="{{.BasePath}}style.css">
</head>
<body>
  <nav class="sidebar">
    <h2 class="site-title"><a href="{{.BasePath}}index.html">{{.SiteTitle}}</a></h2>
    {{.Nav}}
  </nav>
  <main class="content">
    <article class="page-content">
      {{.Content}}
    </article>
  </main>
</body>
</html>
`

// indexTemplate redirects the site root to the first page.
const indexTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  {{if .First}}<meta http-equiv="refresh" content="0; url={{.First}}">{{end}}
</head>
<body>
  {{if .First}}<p><a href="{{.First}}">{{.Title}}</a></p>{{else}}<p>No documents.</p>{{end}}
</body>
</html>
`

// cssContent styles the exported site to match the terminal theme.
const cssContent = `:root {
  --bg: #0c0c0e;
  --panel: #151b26;
  --fg: #e4e4e7;
  --muted: #64748b;
  --accent: #bd93f9;
  --border: #334155;
}
* { box-sizing: border-box; }
body {
  margin: 0;
  display: flex;
  min-height: 100vh;
  background: var(--bg);
  color: var(--fg);
  font: 15px/1.6 system-ui, sans-serif;
}
a { color: var(--accent); text-decoration: none; }
.sidebar {
  width: 280px;
  flex-shrink: 0;
  padding: 1rem;
  background: var(--panel);
  border-right: 1px solid var(--border);
  overflow-y: auto;
}
.sidebar ul { list-style: none; margin: 0; padding-left: 1rem; }
.sidebar > ul { padding-left: 0; }
.sidebar summary { cursor: pointer; color: var(--muted); }
.sidebar a.active { font-weight: 600; color: var(--fg); }
.site-title { font-size: 1rem; margin: 0 0 1rem; }
.content { flex: 1; padding: 2rem 3rem; max-width: 960px; }
pre { padding: 0.75rem; overflow-x: auto; border-radius: 4px; }
figure.diagram { margin: 1.5rem 0; overflow: auto; border: 1px solid var(--border); border-radius: 4px; }
figure.diagram svg { display: block; max-width: 100%; height: auto; margin: 0 auto; }
pre.diagram-error { color: #ff5555; background: #2a1215; white-space: pre-wrap; }
table { border-collapse: collapse; }
th, td { border: 1px solid var(--border); padding: 0.3rem 0.6rem; }
`
