package web

import "embed"

// TemplatesFS holds the shell page, the dashboard partial and the login page.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the notification script.
//
//go:embed static/*
var StaticFS embed.FS
