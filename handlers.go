package main

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

func (ws *WebServer) register(c *gin.Context) {
	var req RegisterUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := ws.tracker.RegisterUser(c.Request.Context(), req)
	if err != nil {
		ws.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": fmt.Sprintf("Account created for %s!", user.Username),
		"user":    user,
	})
}

func (ws *WebServer) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := ws.tracker.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		ws.writeError(c, err)
		return
	}

	token, expiresAt, err := ws.tokens.Issue(user.ID)
	if err != nil {
		ws.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, TokenResponse{AccessToken: token, ExpiresAt: expiresAt, User: user})
}

func (ws *WebServer) home(c *gin.Context) {
	ctx := c.Request.Context()

	stocks, err := ws.tracker.ListStocksByName(ctx)
	if err != nil {
		ws.writeError(c, err)
		return
	}

	analyses := []Analysis{}
	if id := callerID(c); id != 0 {
		analyses, err = ws.tracker.ListAnalysesForUser(ctx, id)
		if err != nil {
			ws.writeError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, HomeResponse{Stocks: stocks, Analyses: analyses})
}

// Account

func (ws *WebServer) getAccount(c *gin.Context) {
	user, err := ws.tracker.GetUser(c.Request.Context(), callerID(c))
	if err != nil {
		ws.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws.accountResponse(user))
}

func (ws *WebServer) updateAccount(c *gin.Context) {
	var req UpdateAccountInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := ws.tracker.UpdateAccount(c.Request.Context(), callerID(c), req)
	if err != nil {
		ws.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws.accountResponse(user))
}

func (ws *WebServer) uploadPicture(c *gin.Context) {
	ctx := c.Request.Context()

	fileHeader, err := c.FormFile("picture")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "picture file is required"})
		return
	}

	user, err := ws.tracker.GetUser(ctx, callerID(c))
	if err != nil {
		ws.writeError(c, err)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	name, err := ws.pictures.Save(fileHeader.Filename, file)
	if err != nil {
		ws.writeError(c, err)
		return
	}

	previous := user.ImageFile
	updated, err := ws.tracker.UpdateAccount(ctx, user.ID, UpdateAccountInput{
		Username:  user.Username,
		Email:     user.Email,
		ImageFile: name,
	})
	if err != nil {
		ws.pictures.Remove(name)
		ws.writeError(c, err)
		return
	}

	if err := ws.pictures.Remove(previous); err != nil {
		ws.logger.Warn("failed to remove old picture", "file", previous, "error", err)
	}
	c.JSON(http.StatusOK, ws.accountResponse(updated))
}

func (ws *WebServer) accountResponse(user *User) AccountResponse {
	return AccountResponse{
		User:     user,
		ImageURL: path.Join(picturesRoute, user.ImageFile),
	}
}

// Stocks

func (ws *WebServer) listStocks(c *gin.Context) {
	stocks, err := ws.tracker.ListStocksByName(c.Request.Context())
	if err != nil {
		ws.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stocks)
}

func (ws *WebServer) createStock(c *gin.Context) {
	var req StockInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stock, err := ws.tracker.CreateStock(c.Request.Context(), req)
	if err != nil {
		ws.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, stock)
}

// getStock returns the stock with its price history, optionally limited by the
// startdate and enddate query parameters (YYYY-MM-DD).
func (ws *WebServer) getStock(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := parseID(c)
	if !ok {
		return
	}
	dates, err := parseDateRange(c.Query("startdate"), c.Query("enddate"))
	if err != nil {
		ws.writeError(c, err)
		return
	}

	stock, err := ws.tracker.GetStock(ctx, id)
	if err != nil {
		ws.writeError(c, err)
		return
	}
	diagrams, err := ws.tracker.ListDiagramsForStock(ctx, stock.ID, dates)
	if err != nil {
		ws.writeError(c, err)
		return
	}
	analyses, err := ws.tracker.ListAnalysesForStock(ctx, stock.ID)
	if err != nil {
		ws.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, StockDetailResponse{Stock: stock, Diagrams: diagrams, Analyses: analyses})
}

func (ws *WebServer) updateStock(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req StockInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stock, err := ws.tracker.UpdateStock(c.Request.Context(), callerID(c), id, req)
	if err != nil {
		ws.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stock)
}

func (ws *WebServer) deleteStock(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := ws.tracker.DeleteStock(c.Request.Context(), callerID(c), id); err != nil {
		ws.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Stock removed successfully"})
}

// Analyses

func (ws *WebServer) listStockAnalyses(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := parseID(c)
	if !ok {
		return
	}
	if _, err := ws.tracker.GetStock(ctx, id); err != nil {
		ws.writeError(c, err)
		return
	}
	analyses, err := ws.tracker.ListAnalysesForStock(ctx, id)
	if err != nil {
		ws.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, analyses)
}

func (ws *WebServer) createAnalysis(c *gin.Context) {
	stockID, ok := parseID(c)
	if !ok {
		return
	}
	var req AnalysisInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	analysis, err := ws.tracker.CreateAnalysis(c.Request.Context(), callerID(c), stockID, req)
	if err != nil {
		ws.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, analysis)
}

func (ws *WebServer) getAnalysis(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	analysis, err := ws.tracker.GetAnalysis(c.Request.Context(), id)
	if err != nil {
		ws.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

func (ws *WebServer) updateAnalysis(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req AnalysisInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	analysis, err := ws.tracker.UpdateAnalysis(c.Request.Context(), callerID(c), id, req)
	if err != nil {
		ws.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

func (ws *WebServer) deleteAnalysis(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := ws.tracker.DeleteAnalysis(c.Request.Context(), callerID(c), id); err != nil {
		ws.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Your analysis has been deleted!"})
}

// Diagrams

func (ws *WebServer) listDiagrams(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := parseID(c)
	if !ok {
		return
	}
	dates, err := parseDateRange(c.Query("startdate"), c.Query("enddate"))
	if err != nil {
		ws.writeError(c, err)
		return
	}
	if _, err := ws.tracker.GetStock(ctx, id); err != nil {
		ws.writeError(c, err)
		return
	}

	diagrams, err := ws.tracker.ListDiagramsForStock(ctx, id, dates)
	if err != nil {
		ws.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, diagrams)
}

func (ws *WebServer) createDiagram(c *gin.Context) {
	stockID, ok := parseID(c)
	if !ok {
		return
	}
	var req DiagramInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	diagram, err := ws.tracker.CreateDiagram(c.Request.Context(), stockID, req)
	if err != nil {
		ws.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, diagram)
}

func (ws *WebServer) recordQuote(c *gin.Context) {
	stockID, ok := parseID(c)
	if !ok {
		return
	}

	diagram, err := ws.tracker.RecordQuote(c.Request.Context(), stockID)
	if err != nil {
		ws.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, diagram)
}

func (ws *WebServer) importHistory(c *gin.Context) {
	stockID, ok := parseID(c)
	if !ok {
		return
	}
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid days parameter"})
		return
	}

	diagrams, err := ws.tracker.ImportPriceHistory(c.Request.Context(), stockID, days)
	if err != nil {
		ws.writeError(c, err)
		return
	}

	resp := ImportResponse{
		Success:      true,
		Message:      fmt.Sprintf("Imported %d price points", len(diagrams)),
		RecordsAdded: len(diagrams),
	}
	if len(diagrams) > 0 {
		resp.LatestDate = diagrams[len(diagrams)-1].Date.Format(dateLayout)
	}
	c.JSON(http.StatusOK, resp)
}

// writeError maps operation errors onto HTTP status codes.
func (ws *WebServer) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	resp := ErrorResponse{Error: err.Error()}

	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		resp.Fields = verr.Fields
	case errors.Is(err, ErrUnsupportedPicture), errors.Is(err, ErrPictureTooLarge):
		status = http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrDuplicateUsername),
		errors.Is(err, ErrDuplicateEmail),
		errors.Is(err, ErrDuplicateStockName),
		errors.Is(err, ErrConstraintViolation):
		status = http.StatusConflict
	case errors.Is(err, ErrQuoteUnavailable):
		status = http.StatusBadGateway
	}

	if status < http.StatusInternalServerError {
		ws.logger.Debug("request rejected", "path", c.FullPath(), "status", status, "error", err)
	} else {
		ws.logger.Error("request failed", "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, resp)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return uint(id), true
}

// parseDateRange returns nil when neither bound is given.
func parseDateRange(start, end string) (*DateRange, error) {
	if start == "" && end == "" {
		return nil, nil
	}

	var dates DateRange
	if start != "" {
		from, err := time.Parse(dateLayout, start)
		if err != nil {
			return nil, newValidationError("startdate", "date")
		}
		dates.From = from
	}
	if end != "" {
		to, err := time.Parse(dateLayout, end)
		if err != nil {
			return nil, newValidationError("enddate", "date")
		}
		dates.To = to
	}
	if !dates.From.IsZero() && !dates.To.IsZero() && dates.To.Before(dates.From) {
		return nil, newValidationError("enddate", "gtefield=startdate")
	}
	return &dates, nil
}
