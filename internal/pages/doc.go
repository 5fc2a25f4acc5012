// Package pages renders the dashboard's HTML views.
//
// Templates live in templates/ and are embedded with go:embed. Each page is
// parsed together with layout.html, which defines the shell and calls the
// page's "content" block. The footer disclaimer is written in markdown under
// content/ and converted to HTML once at startup with goldmark.
//
// Pages never check authentication themselves. The route gate runs first, and
// handlers pass the caller's claims in Page.User.
//
// Static assets (stylesheet and the small script that submits auth forms as
// JSON) are served from static/ by StaticHandler.
package pages
