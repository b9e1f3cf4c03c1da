package session

import (
	"net/http"
	"net/url"
)

//go:generate mockgen -source=ticket.go -destination=mocks/ticket.go -package=mocks

// TicketReader — источник anti-forgery значения для /auth/refresh.
type TicketReader interface {
	// Ticket возвращает значение CSRF-cookie и признак её наличия.
	Ticket() (string, bool)
	// Forget локально удаляет CSRF-cookie (после выхода или завершения сессии).
	Forget()
}

// JarTicketReader читает CSRF-cookie из cookie jar identity-клиента.
// httponly refresh-cookie лежит в том же jar, но сюда не попадает:
// она ограничена путём /auth и читается только транспортом.
type JarTicketReader struct {
	jar  http.CookieJar
	url  *url.URL
	name string
}

func NewJarTicketReader(jar http.CookieJar, u *url.URL, cookieName string) *JarTicketReader {
	return &JarTicketReader{jar: jar, url: u, name: cookieName}
}

func (r *JarTicketReader) Ticket() (string, bool) {
	for _, c := range r.jar.Cookies(r.url) {
		if c.Name == r.name && c.Value != "" {
			return c.Value, true
		}
	}

	return "", false
}

// Forget выставляет в jar истёкшую cookie с тем же именем и путём "/".
func (r *JarTicketReader) Forget() {
	r.jar.SetCookies(r.url, []*http.Cookie{{Name: r.name, Path: "/", MaxAge: -1}})
}
