package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/Matteo-Daniele/useTeam-PT/kanban"
	"github.com/Matteo-Daniele/useTeam-PT/realtime"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, svc Boards, hub *realtime.Hub, exporter Exporter, logger *log.Logger) {
	e.GET("/healthz", healthz())
	e.GET("/ws", serveWS(hub, logger))

	e.POST("/api/boards", createBoard(svc))
	e.GET("/api/boards", listBoards(svc))
	e.GET("/api/boards/:id", getBoard(svc))
	e.PATCH("/api/boards/:id", updateBoard(svc))
	e.DELETE("/api/boards/:id", deleteBoard(svc))
	e.GET("/api/boards/:id/snapshot", getSnapshot(svc))
	e.GET("/api/boards/:id/stats", getStats(svc))

	e.POST("/api/boards/:id/columns", createColumn(svc))
	e.GET("/api/boards/:id/columns", listColumns(svc))
	e.PUT("/api/boards/:id/columns/reorder", reorderColumns(svc, logger))
	e.PATCH("/api/columns/:id", renameColumn(svc))
	e.DELETE("/api/columns/:id", deleteColumn(svc))

	e.POST("/api/columns/:id/cards", createCard(svc))
	e.GET("/api/columns/:id/cards", listColumnCards(svc))
	e.PUT("/api/columns/:id/cards/reorder", reorderCards(svc, logger))
	e.GET("/api/boards/:id/cards", listBoardCards(svc))
	e.PATCH("/api/cards/:id", updateCard(svc))
	e.DELETE("/api/cards/:id", deleteCard(svc))
	e.PUT("/api/cards/:id/move", moveCard(svc, logger))

	e.POST("/api/boards/:id/export", exportBoard(svc, exporter))
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func createBoard(svc Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createBoardRequest
		if err := decodeBody(c, &req); err != nil {
			return writeError(c, err)
		}
		board, err := svc.CreateBoard(c.Request().Context(), req.Name, req.Description)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, board)
	}
}

func listBoards(svc Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		boards, err := svc.Boards(c.Request().Context())
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, boards)
	}
}

func getBoard(svc Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		board, err := svc.BoardByID(c.Request().Context(), c.Param("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, board)
	}
}

func updateBoard(svc Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req updateBoardRequest
		if err := decodeBody(c, &req); err != nil {
			return writeError(c, err)
		}
		board, err := svc.UpdateBoard(c.Request().Context(), c.Param("id"), kanban.BoardPatch{
			Name:        req.Name,
			Description: req.Description,
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, board)
	}
}

func deleteBoard(svc Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := svc.DeleteBoard(c.Request().Context(), c.Param("id")); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getSnapshot(svc Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		snap, err := svc.Snapshot(c.Request().Context(), c.Param("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, snap)
	}
}

func getStats(svc Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		stats, err := svc.Stats(c.Request().Context(), c.Param("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, stats)
	}
}

func createColumn(svc Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createColumnRequest
		if err := decodeBody(c, &req); err != nil {
			return writeError(c, err)
		}
		col, err := svc.CreateColumn(c.Request().Context(), c.Param("id"), req.Name)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, col)
	}
}

func listColumns(svc Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		cols, err := svc.BoardColumns(c.Request().Context(), c.Param("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, cols)
	}
}

func renameColumn(svc Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req renameColumnRequest
		if err := decodeBody(c, &req); err != nil {
			return writeError(c, err)
		}
		col, err := svc.RenameColumn(c.Request().Context(), c.Param("id"), req.Name)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, col)
	}
}

func deleteColumn(svc Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := svc.DeleteColumn(c.Request().Context(), c.Param("id")); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func reorderColumns(svc Boards, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newMutationMetrics(ctx, logger, "/api/boards/:id/columns/reorder")
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		var req reorderColumnsRequest
		if derr := decodeBody(c, &req); derr != nil {
			metrics.SetErrorStage("decode")
			err = writeError(c, derr)
			return err
		}

		persistStart := time.Now()
		reorderErr := svc.ReorderColumns(ctx, c.Param("id"), req.ColumnOrders)
		metrics.ObservePersist(time.Since(persistStart))
		if reorderErr != nil {
			metrics.SetErrorStage("service")
			err = writeError(c, reorderErr)
			return err
		}
		err = c.NoContent(http.StatusNoContent)
		return err
	}
}

func createCard(svc Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createCardRequest
		if err := decodeBody(c, &req); err != nil {
			return writeError(c, err)
		}
		card, err := svc.CreateCard(c.Request().Context(), c.Param("id"), req.Title, req.Description)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, card)
	}
}

func listColumnCards(svc Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		cards, err := svc.ColumnCards(c.Request().Context(), c.Param("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, cards)
	}
}

func listBoardCards(svc Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		cards, err := svc.BoardCards(c.Request().Context(), c.Param("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, cards)
	}
}

func updateCard(svc Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req updateCardRequest
		if err := decodeBody(c, &req); err != nil {
			return writeError(c, err)
		}
		card, err := svc.UpdateCard(c.Request().Context(), c.Param("id"), kanban.CardPatch{
			Title:       req.Title,
			Description: req.Description,
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, card)
	}
}

func deleteCard(svc Boards) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := svc.DeleteCard(c.Request().Context(), c.Param("id")); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func moveCard(svc Boards, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newMutationMetrics(ctx, logger, "/api/cards/:id/move")
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		var req moveCardRequest
		if derr := decodeBody(c, &req); derr != nil {
			metrics.SetErrorStage("decode")
			err = writeError(c, derr)
			return err
		}

		persistStart := time.Now()
		card, moveErr := svc.MoveCard(ctx, c.Param("id"), req.ToColumnID, req.Order)
		metrics.ObservePersist(time.Since(persistStart))
		if moveErr != nil {
			metrics.SetErrorStage("service")
			err = writeError(c, moveErr)
			return err
		}
		err = c.JSON(http.StatusOK, card)
		return err
	}
}

func reorderCards(svc Boards, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newMutationMetrics(ctx, logger, "/api/columns/:id/cards/reorder")
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		var req reorderCardsRequest
		if derr := decodeBody(c, &req); derr != nil {
			metrics.SetErrorStage("decode")
			err = writeError(c, derr)
			return err
		}

		persistStart := time.Now()
		reorderErr := svc.ReorderCards(ctx, c.Param("id"), req.CardOrders)
		metrics.ObservePersist(time.Since(persistStart))
		if reorderErr != nil {
			metrics.SetErrorStage("service")
			err = writeError(c, reorderErr)
			return err
		}
		err = c.NoContent(http.StatusNoContent)
		return err
	}
}

func exportBoard(svc Boards, exporter Exporter) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		var req exportBoardRequest
		if err := decodeBody(c, &req); err != nil {
			return writeError(c, err)
		}
		board, err := svc.BoardByID(ctx, c.Param("id"))
		if err != nil {
			return writeError(c, err)
		}
		requestID, err := exporter.Enqueue(ctx, board.ID, board.Name, req.Email, req.Fields)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusAccepted, exportBoardResponse{RequestID: requestID, Status: "processing"})
	}
}
