package handlers

import (
	"net/http"

	"TodoAPI/internal/auth"
	"TodoAPI/internal/dto"
	"TodoAPI/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	todoNotFound    = "todo not found"
	subtaskNotFound = "subtask not found"
)

type TodoHandler struct {
	svc *service.TodoService
}

func NewTodoHandler(svc *service.TodoService) *TodoHandler {
	return &TodoHandler{svc: svc}
}

func ownerID(c *gin.Context) int64 {
	u, _ := auth.CurrentUser(c)
	return u.ID
}

// List godoc
// @Summary      List the caller's todos
// @Tags         todos
// @Produce      json
// @Security     BearerAuth
// @Param        skip   query     int  false  "Offset"  default(0)
// @Param        limit  query     int  false  "Limit"   default(100)
// @Success      200    {array}   dto.TodoResponse
// @Failure      400    {object}  dto.ErrorResponse
// @Failure      401    {object}  dto.ErrorResponse
// @Failure      500    {object}  dto.ErrorResponse
// @Router       /todos [get]
func (h *TodoHandler) List(c *gin.Context) {
	var q dto.ListTodosQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	list, err := h.svc.List(c.Request.Context(), ownerID(c), q.Skip, q.Limit)
	if err != nil {
		respondError(c, err, todoNotFound)
		return
	}
	c.JSON(http.StatusOK, dto.NewTodoResponses(list))
}

// Create godoc
// @Summary      Create a todo
// @Tags         todos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      dto.CreateTodoRequest  true  "Todo body"
// @Success      201   {object}  dto.TodoResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Router       /todos [post]
func (h *TodoHandler) Create(c *gin.Context) {
	var req dto.CreateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.svc.Create(c.Request.Context(), ownerID(c), req.ToNewTodo())
	if err != nil {
		respondError(c, err, todoNotFound)
		return
	}
	c.JSON(http.StatusCreated, dto.NewTodoResponse(t))
}

// GetByID godoc
// @Summary      Get a todo by ID
// @Tags         todos
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Todo ID"
// @Success      200  {object}  dto.TodoResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /todos/{id} [get]
func (h *TodoHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	t, err := h.svc.Get(c.Request.Context(), ownerID(c), id)
	if err != nil {
		respondError(c, err, todoNotFound)
		return
	}
	c.JSON(http.StatusOK, dto.NewTodoResponse(t))
}

// Update godoc
// @Summary      Update a todo
// @Description  Only the fields present in the body change. description and due_date accept null to clear.
// @Tags         todos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                    true  "Todo ID"
// @Param        body  body      dto.UpdateTodoRequest  true  "Partial update"
// @Success      200   {object}  dto.TodoResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /todos/{id} [put]
func (h *TodoHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	patch, err := req.ToPatch()
	if err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.svc.Update(c.Request.Context(), ownerID(c), id, patch)
	if err != nil {
		respondError(c, err, todoNotFound)
		return
	}
	c.JSON(http.StatusOK, dto.NewTodoResponse(t))
}

// Delete godoc
// @Summary      Delete a todo with its subtasks and tag links
// @Tags         todos
// @Security     BearerAuth
// @Param        id   path  int  true  "Todo ID"
// @Success      204
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /todos/{id} [delete]
func (h *TodoHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), ownerID(c), id); err != nil {
		respondError(c, err, todoNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

// Complete godoc
// @Summary      Mark a todo as completed
// @Tags         todos
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Todo ID"
// @Success      200  {object}  dto.TodoResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /todos/{id}/complete [post]
func (h *TodoHandler) Complete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	t, err := h.svc.Complete(c.Request.Context(), ownerID(c), id)
	if err != nil {
		respondError(c, err, todoNotFound)
		return
	}
	c.JSON(http.StatusOK, dto.NewTodoResponse(t))
}

// Search godoc
// @Summary      Search todos by text or description
// @Tags         todos
// @Produce      json
// @Security     BearerAuth
// @Param        q    query     string  true  "Search query"
// @Success      200  {array}   dto.TodoResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /todos/search [get]
func (h *TodoHandler) Search(c *gin.Context) {
	q, ok := c.GetQuery("q")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	list, err := h.svc.Search(c.Request.Context(), ownerID(c), q)
	if err != nil {
		respondError(c, err, todoNotFound)
		return
	}
	c.JSON(http.StatusOK, dto.NewTodoResponses(list))
}

// Overdue godoc
// @Summary      List incomplete todos past their due date
// @Tags         todos
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  dto.TodoResponse
// @Router       /todos/overdue [get]
func (h *TodoHandler) Overdue(c *gin.Context) {
	list, err := h.svc.Overdue(c.Request.Context(), ownerID(c))
	if err != nil {
		respondError(c, err, todoNotFound)
		return
	}
	c.JSON(http.StatusOK, dto.NewTodoResponses(list))
}

// CreateSubtask godoc
// @Summary      Add a subtask
// @Tags         subtasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                       true  "Todo ID"
// @Param        body  body      dto.CreateSubtaskRequest  true  "Subtask"
// @Success      201   {object}  dto.TodoResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /todos/{id}/subtasks [post]
func (h *TodoHandler) CreateSubtask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.CreateSubtaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.svc.CreateSubtask(c.Request.Context(), ownerID(c), id, req.Text, req.Completed)
	if err != nil {
		respondError(c, err, todoNotFound)
		return
	}
	c.JSON(http.StatusCreated, dto.NewTodoResponse(t))
}

// UpdateSubtask godoc
// @Summary      Update a subtask
// @Tags         subtasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id          path      int                       true  "Todo ID"
// @Param        subtask_id  path      int                       true  "Subtask ID"
// @Param        body        body      dto.UpdateSubtaskRequest  true  "Partial update"
// @Success      200         {object}  dto.SubTaskResponse
// @Failure      400         {object}  dto.ErrorResponse
// @Failure      404         {object}  dto.ErrorResponse
// @Router       /todos/{id}/subtasks/{subtask_id} [put]
func (h *TodoHandler) UpdateSubtask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	subtaskID, ok := parseID(c, "subtask_id")
	if !ok {
		return
	}
	var req dto.UpdateSubtaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	st, err := h.svc.UpdateSubtask(c.Request.Context(), ownerID(c), id, subtaskID, req.ToPatch())
	if err != nil {
		respondError(c, err, subtaskNotFound)
		return
	}
	c.JSON(http.StatusOK, dto.NewSubTaskResponse(st))
}

// DeleteSubtask godoc
// @Summary      Delete a subtask
// @Tags         subtasks
// @Security     BearerAuth
// @Param        id          path  int  true  "Todo ID"
// @Param        subtask_id  path  int  true  "Subtask ID"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /todos/{id}/subtasks/{subtask_id} [delete]
func (h *TodoHandler) DeleteSubtask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	subtaskID, ok := parseID(c, "subtask_id")
	if !ok {
		return
	}
	if err := h.svc.DeleteSubtask(c.Request.Context(), ownerID(c), id, subtaskID); err != nil {
		respondError(c, err, subtaskNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddTag godoc
// @Summary      Attach a tag, creating it if needed
// @Tags         tags
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int             true  "Todo ID"
// @Param        body  body      dto.TagRequest  true  "Tag"
// @Success      201   {object}  dto.TagResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /todos/{id}/tags [post]
func (h *TodoHandler) AddTag(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.TagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tag, err := h.svc.AddTag(c.Request.Context(), ownerID(c), id, req.Name)
	if err != nil {
		respondError(c, err, todoNotFound)
		return
	}
	c.JSON(http.StatusCreated, dto.NewTagResponse(tag))
}

// RemoveTag godoc
// @Summary      Detach a tag
// @Description  Succeeds when the tag is not attached; 404 only when the todo is missing.
// @Tags         tags
// @Security     BearerAuth
// @Param        id      path  int  true  "Todo ID"
// @Param        tag_id  path  int  true  "Tag ID"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /todos/{id}/tags/{tag_id} [delete]
func (h *TodoHandler) RemoveTag(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	tagID, ok := parseID(c, "tag_id")
	if !ok {
		return
	}
	if err := h.svc.RemoveTag(c.Request.Context(), ownerID(c), id, tagID); err != nil {
		respondError(c, err, todoNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListByTag godoc
// @Summary      List the caller's todos carrying a tag
// @Tags         tags
// @Produce      json
// @Security     BearerAuth
// @Param        tag_name  path     string  true  "Tag name"
// @Success      200       {array}  dto.TodoResponse
// @Router       /todos/tags/{tag_name} [get]
func (h *TodoHandler) ListByTag(c *gin.Context) {
	list, err := h.svc.ListByTag(c.Request.Context(), ownerID(c), c.Param("tag_name"))
	if err != nil {
		respondError(c, err, todoNotFound)
		return
	}
	c.JSON(http.StatusOK, dto.NewTodoResponses(list))
}
