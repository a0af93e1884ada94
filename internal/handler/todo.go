package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/todo-service/internal/service"
)

// TodoHandler serves /api/todos. Every operation is scoped to the caller.
type TodoHandler struct {
	Todos *service.TodoService
}

func NewTodoHandler(todos *service.TodoService) *TodoHandler {
	return &TodoHandler{Todos: todos}
}

func (h *TodoHandler) Create(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req todoRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	in, err := req.validate()
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	td, err := h.Todos.Create(ctx, user.UserID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, td)
}

// List returns one page of todos filtered by search, completed and sort.
func (h *TodoHandler) List(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	q, err := parseTodoQuery(c.QueryParams())
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	page, err := h.Todos.FindAll(ctx, user.UserID, q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (h *TodoHandler) Statistics(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	stats, err := h.Todos.Statistics(ctx, user.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *TodoHandler) Get(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	td, err := h.Todos.FindOne(ctx, id, user.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, td)
}

func (h *TodoHandler) Update(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req updateTodoRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	upd, err := req.validate()
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	td, err := h.Todos.Update(ctx, id, user.UserID, upd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, td)
}

func (h *TodoHandler) Delete(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if _, err := h.Todos.Remove(ctx, id, user.UserID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// BatchUpdate applies one partial update to every listed todo, or to none.
func (h *TodoHandler) BatchUpdate(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req batchUpdateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ids, upd, err := req.validate()
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Todos.UpdateMany(ctx, user.UserID, ids, upd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *TodoHandler) BatchDelete(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req batchDeleteRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ids, err := req.validate()
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Todos.DeleteMany(ctx, user.UserID, ids)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
