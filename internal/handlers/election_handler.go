package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/unibvs/bvs-backend/internal/dto"
	"github.com/unibvs/bvs-backend/internal/identity"
	"github.com/unibvs/bvs-backend/internal/services"
)

type ElectionHandler struct {
	electionService *services.ElectionService
}

func NewElectionHandler(electionService *services.ElectionService) *ElectionHandler {
	return &ElectionHandler{electionService: electionService}
}

func (h *ElectionHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateElectionRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	election, err := h.electionService.CreateElection(c.UserContext(), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(election)
}

func (h *ElectionHandler) List(c *fiber.Ctx) error {
	elections, err := h.electionService.ListElections(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(elections)
}

func (h *ElectionHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badID(c, "election")
	}

	election, err := h.electionService.GetElection(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(election)
}

func (h *ElectionHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badID(c, "election")
	}
	var req dto.UpdateElectionStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	election, err := h.electionService.TransitionStatus(c.UserContext(), id, req.Status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(election)
}

func (h *ElectionHandler) ActiveBallot(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorizedCaller(c)
	}

	election, err := h.electionService.GetActiveBallot(c.UserContext(), userID, identity.IsAdmin(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(election)
}

func (h *ElectionHandler) Vote(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorizedCaller(c)
	}
	var req dto.SubmitVoteRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	receipt, err := h.electionService.SubmitVote(c.UserContext(), userID, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(receipt)
}

func (h *ElectionHandler) Results(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badID(c, "election")
	}

	results, err := h.electionService.GetResults(c.UserContext(), id, identity.IsAdmin(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(results)
}
