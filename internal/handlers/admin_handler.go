package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/unibvs/bvs-backend/internal/dto"
	"github.com/unibvs/bvs-backend/internal/models"
	"github.com/unibvs/bvs-backend/internal/services"
)

type AdminHandler struct {
	candidateService *services.CandidateService
	voterService     *services.VoterService
}

func NewAdminHandler(candidateService *services.CandidateService, voterService *services.VoterService) *AdminHandler {
	return &AdminHandler{candidateService: candidateService, voterService: voterService}
}

func (h *AdminHandler) AddCandidate(c *fiber.Ctx) error {
	var req dto.CreateCandidateRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if req.ElectionID == uuid.Nil || req.PositionID == uuid.Nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "election_id and position_id are required",
		})
	}

	candidate, err := h.candidateService.AddCandidate(c.UserContext(), req.ElectionID, req.PositionID, services.CandidateInput{
		Name:      req.Name,
		Manifesto: req.Manifesto,
		ImageURL:  req.ImageURL,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(candidate)
}

func (h *AdminHandler) RemoveCandidate(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badID(c, "candidate")
	}

	if _, err := h.candidateService.RemoveCandidate(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.MessageResponse{Message: "Candidate removed"})
}

func (h *AdminHandler) ImportVoters(c *fiber.Ctx) error {
	var req dto.ImportVotersRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	res, err := h.voterService.ImportVoters(c.UserContext(), req.Voters)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (h *AdminHandler) ListVoters(c *fiber.Ctx) error {
	filter := dto.VoterFilter{
		UserType: models.UserType(c.Query("user_type")),
		Limit:    c.QueryInt("limit"),
		Offset:   c.QueryInt("offset"),
	}

	list, err := h.voterService.ListVoters(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}
