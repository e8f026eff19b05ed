package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/crisispulse/CrisisPulse/internal/pkg/usercontext"
)

// VoteRequest carries the vote type for a cast.
type VoteRequest struct {
	VoteType string `json:"vote_type"`
}

// POST /api/v1/reports/:uuid/vote - cast a vote with toggle semantics.
// Casting the same type twice removes the vote, the opposite type
// replaces it.
func HandleCastVote(c *fiber.Ctx) error {
	user := usercontext.GetUserContext(c)
	if !user.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	var req VoteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid JSON body"})
	}

	tally, err := engine.CastVote(c.Params("uuid"), user.UserID, req.VoteType)
	if err != nil {
		return respondTrustError(c, err)
	}
	return c.JSON(fiber.Map{
		"report_id": c.Params("uuid"),
		"upvotes":   tally.Upvotes,
		"downvotes": tally.Downvotes,
	})
}

// DELETE /api/v1/reports/:uuid/vote - withdraw the caller's vote. Removing
// a vote that does not exist is a no-op.
func HandleRemoveVote(c *fiber.Ctx) error {
	user := usercontext.GetUserContext(c)
	if !user.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	tally, err := engine.RemoveVote(c.Params("uuid"), user.UserID)
	if err != nil {
		return respondTrustError(c, err)
	}
	return c.JSON(fiber.Map{
		"report_id": c.Params("uuid"),
		"upvotes":   tally.Upvotes,
		"downvotes": tally.Downvotes,
	})
}

// GET /api/v1/reports/:uuid/votes - public vote tally for a report.
func HandleGetTally(c *fiber.Ctx) error {
	id := c.Params("uuid")
	tally, score, err := engine.GetTally(id)
	if err != nil {
		return respondTrustError(c, err)
	}
	return c.JSON(fiber.Map{
		"report_id":       id,
		"upvotes":         tally.Upvotes,
		"downvotes":       tally.Downvotes,
		"consensus_score": score,
	})
}

// GET /api/v1/reports/:uuid/vote - the caller's current vote plus the tally.
func HandleGetVote(c *fiber.Ctx) error {
	user := usercontext.GetUserContext(c)
	if !user.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	id := c.Params("uuid")
	vote, err := engine.GetVote(id, user.UserID)
	if err != nil {
		return respondTrustError(c, err)
	}
	tally, score, err := engine.GetTally(id)
	if err != nil {
		return respondTrustError(c, err)
	}

	var voteType *string
	if vote != nil {
		voteType = &vote.VoteType
	}
	return c.JSON(fiber.Map{
		"report_id":       id,
		"vote_type":       voteType,
		"upvotes":         tally.Upvotes,
		"downvotes":       tally.Downvotes,
		"consensus_score": score,
	})
}
