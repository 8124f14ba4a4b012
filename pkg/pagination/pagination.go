package pagination

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
)

const MaxLimit = 100

// Params holds limit/offset pagination parameters. Without a positive
// "limit" query parameter a listing is not paginated at all and the full
// result set is returned as a bare array.
type Params struct {
	Limit     int
	Offset    int
	Paginated bool
}

// FromContext extracts pagination parameters from the echo context.
func FromContext(c echo.Context) Params {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		return Params{}
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return Params{Limit: limit, Offset: offset, Paginated: true}
}

// LimitArg is the LIMIT bind value; nil selects every row.
func (p Params) LimitArg() interface{} {
	if !p.Paginated {
		return nil
	}
	return p.Limit
}

// OffsetArg is the OFFSET bind value. Offset only applies with a limit.
func (p Params) OffsetArg() int {
	if !p.Paginated {
		return 0
	}
	return p.Offset
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// HasPrevious returns true if there are results before the current page.
func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// PreviousOffset returns the offset for the previous page, never negative.
func (p Params) PreviousOffset() int {
	prev := p.Offset - p.Limit
	if prev < 0 {
		return 0
	}
	return prev
}

// Page is the envelope for a paginated listing.
type Page struct {
	Count    int         `json:"count"`
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
	Results  interface{} `json:"results"`
}

// NewPage builds the envelope. Links keep every other query parameter of
// the request so filters and ordering carry across pages.
func NewPage(base *url.URL, p Params, results interface{}, total int) *Page {
	page := &Page{Count: total, Results: results}
	if p.HasNext(total) {
		next := withOffset(base, p.Limit, p.NextOffset())
		page.Next = &next
	}
	if p.HasPrevious() {
		prev := withOffset(base, p.Limit, p.PreviousOffset())
		page.Previous = &prev
	}
	return page
}

func withOffset(base *url.URL, limit, offset int) string {
	u := *base
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	} else {
		q.Del("offset")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// RequestURL reconstructs the absolute URL of the current request.
func RequestURL(c echo.Context) *url.URL {
	req := c.Request()
	u := *req.URL
	u.Scheme = c.Scheme()
	u.Host = req.Host
	return &u
}

// Render writes results as a bare array or, when paginated, as a Page.
func Render(c echo.Context, p Params, results interface{}, total int) error {
	if !p.Paginated {
		return c.JSON(http.StatusOK, results)
	}
	return c.JSON(http.StatusOK, NewPage(RequestURL(c), p, results, total))
}
