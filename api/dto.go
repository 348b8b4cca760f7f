package api

import (
	"io"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"github.com/Matteo-Daniele/useTeam-PT/domain"
)

const requestMaxSize = 64 * 1024 // 64 KiB

type createBoardRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateBoardRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type createColumnRequest struct {
	Name string `json:"name"`
}

type renameColumnRequest struct {
	Name string `json:"name"`
}

type reorderColumnsRequest struct {
	ColumnOrders []domain.OrderAssignment `json:"columnOrders"`
}

type createCardRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type updateCardRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type moveCardRequest struct {
	ToColumnID string `json:"toColumnId"`
	Order      int    `json:"order"`
}

type reorderCardsRequest struct {
	CardOrders []domain.OrderAssignment `json:"cardOrders"`
}

type exportBoardRequest struct {
	Email  string   `json:"email"`
	Fields []string `json:"fields"`
}

type exportBoardResponse struct {
	RequestID string `json:"requestId"`
	Status    string `json:"status"`
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, requestMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.Validationf("invalid request body")
	}
	return nil
}
