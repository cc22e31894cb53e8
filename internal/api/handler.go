// Package api exposes the ledger and the chat hooks over HTTP.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/britcoin/internal/auth"
	"github.com/jmerrifield20/britcoin/internal/bot"
	"github.com/jmerrifield20/britcoin/internal/chain"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// Handler serves the /api/v1 routes.
type Handler struct {
	ledger *chain.Ledger
	plugin *bot.Plugin
	tokens *auth.TokenIssuer
	logger *zap.Logger
}

// NewHandler creates a Handler. A nil tokens issuer leaves write routes open.
func NewHandler(ledger *chain.Ledger, plugin *bot.Plugin, tokens *auth.TokenIssuer, logger *zap.Logger) *Handler {
	return &Handler{ledger: ledger, plugin: plugin, tokens: tokens, logger: logger}
}

// Register mounts the routes on the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	c := rg.Group("/chain")
	{
		c.GET("", h.Overview)
		c.GET("/verify", h.Verify)
		c.GET("/blocks", h.ListBlocks)
		c.GET("/blocks/:idx", h.GetBlock)
		c.GET("/pending", h.Pending)
	}
	rg.GET("/balances", h.Balances)
	rg.GET("/balances/:participant", h.Balance)
	rg.GET("/stats", h.Stats)

	w := rg.Group("")
	w.Use(auth.RequireToken(h.tokens))
	{
		w.POST("/messages", h.PostMessage)
		w.POST("/commands", h.PostCommand)
		w.POST("/transactions", h.PostTransaction)
	}
}

// Overview handles GET /chain and returns the chain length and tail hash.
func (h *Handler) Overview(c *gin.Context) {
	s := h.ledger.Summary()
	c.JSON(http.StatusOK, gin.H{
		"length":     s.Length,
		"tail":       s.Tail.Hash(),
		"tail_index": s.Tail.Index(),
		"difficulty": s.Difficulty,
		"pending":    s.Pending,
	})
}

// Verify handles GET /chain/verify. It walks the chain and reports integrity.
func (h *Handler) Verify(c *gin.Context) {
	if err := h.ledger.Verify(); err != nil {
		h.logger.Warn("chain integrity check failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{
			"valid": false,
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// ListBlocks handles GET /chain/blocks?from=&limit= and returns a page of blocks.
func (h *Handler) ListBlocks(c *gin.Context) {
	from, err := strconv.Atoi(c.DefaultQuery("from", "0"))
	if err != nil || from < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must be a non-negative integer"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	limit = min(limit, maxPageSize)

	blocks := h.ledger.Blocks()
	total := len(blocks)
	start := min(from, total)
	end := min(start+limit, total)

	c.JSON(http.StatusOK, gin.H{
		"blocks": blocks[start:end],
		"count":  end - start,
		"total":  total,
	})
}

// GetBlock handles GET /chain/blocks/:idx.
func (h *Handler) GetBlock(c *gin.Context) {
	idx, err := strconv.ParseInt(c.Param("idx"), 10, 64)
	if err != nil || idx < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idx must be a non-negative integer"})
		return
	}

	b, err := h.ledger.Block(idx)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// Pending handles GET /chain/pending: transactions awaiting a block.
func (h *Handler) Pending(c *gin.Context) {
	txs := h.ledger.Pending()
	c.JSON(http.StatusOK, gin.H{"transactions": txs, "count": len(txs)})
}

// Balances handles GET /balances.
func (h *Handler) Balances(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"balances": h.ledger.Balances()})
}

// Balance handles GET /balances/:participant.
func (h *Handler) Balance(c *gin.Context) {
	who := c.Param("participant")
	c.JSON(http.StatusOK, gin.H{"participant": who, "balance": h.ledger.Balance(who)})
}

// Stats handles GET /stats.
func (h *Handler) Stats(c *gin.Context) {
	s, err := h.ledger.Stats()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, StatsResponse{
		Blocks:          s.Blocks,
		CoinsMined:      s.CoinsMined,
		First:           s.First.String(),
		Last:            s.Last.String(),
		DurationSeconds: s.Duration.Seconds(),
		PerCoinSeconds:  s.PerCoin.Seconds(),
	})
}

// PostMessage handles POST /messages. It runs a chat message through the
// mining hook.
func (h *Handler) PostMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b, err := h.plugin.Preprocess(c.Request.Context(), req.Channel, req.Sender, req.Text)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Mined: b != nil, Block: b})
}

// PostCommand handles POST /commands and returns the command's reply.
func (h *Handler) PostCommand(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reply, err := h.plugin.Command(c.Request.Context(), req.Channel, req.Sender, h.plugin.ParseCommand(req.Command))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, CommandResponse{Reply: reply})
}

// PostTransaction handles POST /transactions. It queues a transfer for the
// next mined block.
func (h *Handler) PostTransaction(c *gin.Context) {
	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.From == chain.Network {
		c.JSON(http.StatusBadRequest, gin.H{"error": chain.Network + " is reserved for minting and cannot send"})
		return
	}

	if err := h.ledger.Send(c.Request.Context(), req.From, req.To, req.Amount, req.Memo); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, TransactionResponse{
		Transaction: chain.Transaction{From: req.From, To: req.To, Amount: req.Amount, Memo: req.Memo},
		Pending:     len(h.ledger.Pending()),
	})
}

// writeError maps ledger errors to HTTP statuses.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chain.ErrInvalidTransaction), errors.Is(err, chain.ErrBalanceOverflow):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, chain.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, chain.ErrBlockNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
	case errors.Is(err, chain.ErrNoCoinsMined):
		c.JSON(http.StatusConflict, gin.H{"error": "no coins have been mined yet"})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
