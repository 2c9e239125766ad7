package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wardline.app/api/internal/http/dto"
	"wardline.app/api/internal/service"
)

type PatientHandler struct {
	patientService service.PatientService
}

func NewPatientHandler(patientService service.PatientService) *PatientHandler {
	return &PatientHandler{patientService: patientService}
}

func (h *PatientHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var query dto.ListPatientsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid paging parameters"})
		return
	}

	patients, err := h.patientService.List(c.Request.Context(), user, query.Limit, query.Offset)
	if err != nil {
		respondError(c, err, "list patients")
		return
	}

	c.JSON(http.StatusOK, gin.H{"patients": dto.ToPatientResponses(patients)})
}

func (h *PatientHandler) Get(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	patientID, ok := pathID(c, "id")
	if !ok {
		return
	}

	patient, err := h.patientService.Get(c.Request.Context(), user, patientID)
	if err != nil {
		respondError(c, err, "load patient")
		return
	}

	c.JSON(http.StatusOK, dto.ToPatientResponse(patient))
}

func (h *PatientHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.PatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: rut, name and unit are required"})
		return
	}

	patient, err := h.patientService.Create(c.Request.Context(), user, req.Input())
	if err != nil {
		respondError(c, err, "create patient")
		return
	}

	c.JSON(http.StatusCreated, dto.ToPatientResponse(patient))
}

func (h *PatientHandler) Update(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	patientID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req dto.PatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: rut, name and unit are required"})
		return
	}

	patient, err := h.patientService.Update(c.Request.Context(), user, patientID, req.Input())
	if err != nil {
		respondError(c, err, "update patient")
		return
	}

	c.JSON(http.StatusOK, dto.ToPatientResponse(patient))
}

func (h *PatientHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	patientID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.patientService.Delete(c.Request.Context(), user, patientID); err != nil {
		respondError(c, err, "delete patient")
		return
	}

	c.Status(http.StatusNoContent)
}
