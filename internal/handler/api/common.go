package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"paysync/internal/models"
)

// operatorRequest is the body of POST /api/payments. The verb goes in "actions".
type operatorRequest struct {
	Actions string   `json:"actions"`
	OrderID looseInt `json:"order_id"`
	Limit   looseInt `json:"limit"`
}

// looseInt accepts a JSON number or a numeric string. Anything else reads as 0.
type looseInt int

func (n *looseInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if v, err := strconv.ParseFloat(string(data), 64); err == nil {
		*n = looseInt(v)
	}
	return nil
}

func bindOperatorRequest(c echo.Context) (*operatorRequest, error) {
	var req operatorRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func respond(c echo.Context, ok bool, msg string, obj interface{}) error {
	return c.JSON(http.StatusOK, models.APIResponse{Status: ok, Msg: msg, Obj: obj})
}

func successResponse(c echo.Context, msg string, obj interface{}) error {
	return respond(c, true, msg, obj)
}

func errorResponse(c echo.Context, msg string) error {
	return respond(c, false, msg, nil)
}
