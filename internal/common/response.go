package common

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Envelope is the JSON shape of every successful response. Messages are
// human-readable text; machine consumers key off the HTTP status and the
// success flag.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ListEnvelope adds the pagination fields to the envelope for list
// responses.
type ListEnvelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Page    int         `json:"page"`
	Pages   int         `json:"pages"`
}

// SendSuccess writes a 200 envelope.
func SendSuccess(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// SendCreated writes a 201 envelope.
func SendCreated(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

// SendList writes a 200 list envelope with the pagination block.
func SendList(c echo.Context, data interface{}, total, page, limit int) error {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return c.JSON(http.StatusOK, ListEnvelope{
		Success: true,
		Data:    data,
		Total:   total,
		Page:    page,
		Pages:   pages,
	})
}
