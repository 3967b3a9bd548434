package site

import (
	"html/template"
	"time"
)

const baseLayout = `{{define "base"}}<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
{{.Head}}
</head>
<body>
<header class="site-header"><a href="{{.Home}}">{{.SiteTitle}}</a></header>
<main>
{{template "content" .}}
</main>
</body>
</html>
{{end}}`

const pageContent = `{{define "content"}}<article class="post">
{{- with .Page}}
{{- if not .Date.IsZero}}
<time datetime="{{.Date.Format "2006-01-02"}}">{{formatDate .Date}}</time>
{{- end}}
{{.Body}}
{{- if .Tags}}
<ul class="tags">{{range .Tags}}<li>{{.}}</li>{{end}}</ul>
{{- end}}
{{- end}}
</article>{{end}}`

const indexContent = `{{define "content"}}<section class="posts">
<h1>{{.SiteTitle}}</h1>
{{- if .Posts}}
<ul>
{{- range .Posts}}
<li><a href="{{.Href}}">{{.Title}}</a>{{if not .Date.IsZero}} <time datetime="{{.Date.Format "2006-01-02"}}">{{formatDate .Date}}</time>{{end}}{{with .Summary}}<p>{{.}}</p>{{end}}</li>
{{- end}}
</ul>
{{- else}}
<p>No posts yet.</p>
{{- end}}
</section>{{end}}`

var funcs = template.FuncMap{
	"formatDate": func(t time.Time) string { return t.Format("January 2, 2006") },
}

// layouts holds the page and index templates sharing one base.
type layouts struct {
	page  *template.Template
	index *template.Template
}

func parseLayouts() (*layouts, error) {
	base, err := template.New("base").Funcs(funcs).Parse(baseLayout)
	if err != nil {
		return nil, err
	}
	pageBase, err := base.Clone()
	if err != nil {
		return nil, err
	}
	page, err := pageBase.Parse(pageContent)
	if err != nil {
		return nil, err
	}
	indexBase, err := base.Clone()
	if err != nil {
		return nil, err
	}
	index, err := indexBase.Parse(indexContent)
	if err != nil {
		return nil, err
	}
	return &layouts{page: page, index: index}, nil
}

type pageView struct {
	Title string
	Date  time.Time
	Tags  []string
	Body  template.HTML
}

type indexEntry struct {
	Href    string
	Title   string
	Date    time.Time
	Summary string
}

// layoutData is the root of both templates.
type layoutData struct {
	Lang      string
	Head      template.HTML
	Home      string
	SiteTitle string
	Page      *pageView
	Posts     []indexEntry
}
