/*
handlers_resources.go - Staff leave, attendance, conversion and branch handlers

PURPOSE:
  Back-office resources that sit beside the ledger core: staff leave
  requests, QR check-in attendance, vehicle conversion jobs and the
  branch (vehicle) registry. Pure CRUD plus small aggregations; none of
  these touch the ledger engine.

SEE ALSO:
  - handlers.go: Station, pricing, client, sales and transfer handlers
  - store/sqlite/resources.go: Row types and queries
*/
package api

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fuelops/backoffice/ledger"
	"github.com/fuelops/backoffice/store/sqlite"
)

// =============================================================================
// STAFF LEAVES
// =============================================================================

// ListLeaves returns leave requests, filtered by staffId, status, from, to.
func (h *Handler) ListLeaves(w http.ResponseWriter, r *http.Request) {
	f := sqlite.LeaveFilter{
		StaffID: queryID(r, "staffId"),
		Status:  r.URL.Query().Get("status"),
	}
	if v := r.URL.Query().Get("from"); v != "" {
		d, err := ledger.ParseDate(v)
		if err != nil {
			writeDomainError(w, err, "Invalid from date")
			return
		}
		f.DateFrom = d
	}
	if v := r.URL.Query().Get("to"); v != "" {
		d, err := ledger.ParseDate(v)
		if err != nil {
			writeDomainError(w, err, "Invalid to date")
			return
		}
		f.DateTo = d
	}

	leaves, err := h.Store.Leaves(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list leave requests", err)
		return
	}
	dtos := make([]LeaveDTO, len(leaves))
	for i, l := range leaves {
		dtos[i] = toLeaveDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetLeave returns one leave request.
func (h *Handler) GetLeave(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	l, err := h.Store.Leave(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get leave request", err)
		return
	}
	if l == nil {
		writeError(w, http.StatusNotFound, "Leave request not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTO(*l))
}

// CreateLeave files a leave request in pending status.
func (h *Handler) CreateLeave(w http.ResponseWriter, r *http.Request) {
	var req LeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.StaffID == 0 || req.StaffName == "" || req.LeaveType == "" {
		writeError(w, http.StatusBadRequest, "staffId, staffName and leaveType are required", nil)
		return
	}
	start, err := ledger.ParseDate(req.StartDate)
	if err != nil {
		writeDomainError(w, err, "Invalid startDate")
		return
	}
	end, err := ledger.ParseDate(req.EndDate)
	if err != nil {
		writeDomainError(w, err, "Invalid endDate")
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "endDate cannot be before startDate", nil)
		return
	}

	l, err := h.Store.CreateLeave(r.Context(), sqlite.StaffLeave{
		StaffID:   req.StaffID,
		StaffName: req.StaffName,
		LeaveType: req.LeaveType,
		StartDate: start,
		EndDate:   end,
		Reason:    req.Reason,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create leave request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveDTO(*l))
}

// UpdateLeave edits a leave request's fields.
func (h *Handler) UpdateLeave(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req LeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := ledger.ParseDate(req.StartDate)
	if err != nil {
		writeDomainError(w, err, "Invalid startDate")
		return
	}
	end, err := ledger.ParseDate(req.EndDate)
	if err != nil {
		writeDomainError(w, err, "Invalid endDate")
		return
	}

	l, err := h.Store.UpdateLeave(r.Context(), sqlite.StaffLeave{
		ID:        id,
		StaffID:   req.StaffID,
		StaffName: req.StaffName,
		LeaveType: req.LeaveType,
		StartDate: start,
		EndDate:   end,
		Reason:    req.Reason,
	})
	if err != nil {
		writeDomainError(w, err, "Failed to update leave request")
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTO(*l))
}

// DeleteLeave removes a leave request.
func (h *Handler) DeleteLeave(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.Store.DeleteLeave(r.Context(), id); err != nil {
		writeDomainError(w, err, "Failed to delete leave request")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Leave request deleted"})
}

// ApproveLeave flips a pending leave request to approved.
func (h *Handler) ApproveLeave(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	l, err := h.Store.ApproveLeave(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "Failed to approve leave request")
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTO(*l))
}

func toLeaveDTO(l sqlite.StaffLeave) LeaveDTO {
	return LeaveDTO{
		ID:        l.ID,
		StaffID:   l.StaffID,
		StaffName: l.StaffName,
		LeaveType: l.LeaveType,
		StartDate: l.StartDate.Format(ledger.DateFormat),
		EndDate:   l.EndDate.Format(ledger.DateFormat),
		Reason:    l.Reason,
		Status:    l.Status,
		CreatedAt: ledger.FormatDateTime(l.CreatedAt),
		UpdatedAt: ledger.FormatDateTime(l.UpdatedAt),
	}
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// ListAttendance returns check-in records, filtered by userId, stationId,
// status, from, to.
func (h *Handler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	f := sqlite.AttendanceFilter{
		UserID:    queryID(r, "userId"),
		StationID: queryID(r, "stationId"),
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := 0
		if v == "1" {
			status = 1
		}
		f.Status = &status
	}
	if v := r.URL.Query().Get("from"); v != "" {
		d, err := ledger.ParseDate(v)
		if err != nil {
			writeDomainError(w, err, "Invalid from date")
			return
		}
		f.DateFrom = d
	}
	if v := r.URL.Query().Get("to"); v != "" {
		d, err := ledger.ParseDate(v)
		if err != nil {
			writeDomainError(w, err, "Invalid to date")
			return
		}
		f.DateTo = d
	}

	records, err := h.Store.AttendanceRecords(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list attendance records", err)
		return
	}
	dtos := make([]AttendanceDTO, len(records))
	for i, rec := range records {
		dtos[i] = toAttendanceDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAttendanceStats returns overall or per-station attendance counts.
func (h *Handler) GetAttendanceStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.AttendanceStatsFor(r.Context(), queryID(r, "stationId"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get attendance stats", err)
		return
	}
	writeJSON(w, http.StatusOK, AttendanceStatsDTO{
		Total:      stats.Total,
		CheckedIn:  stats.CheckedIn,
		CheckedOut: stats.CheckedOut,
	})
}

// GetAttendanceRecord returns one check-in record.
func (h *Handler) GetAttendanceRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	rec, err := h.Store.AttendanceRecord(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get attendance record", err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "Attendance record not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceDTO(*rec))
}

// CheckIn records a staff check-in at a station.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req CheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == 0 || req.UserName == "" || req.StationID == 0 {
		writeError(w, http.StatusBadRequest, "userId, userName and stationId are required", nil)
		return
	}
	rec, err := h.Store.CreateCheckIn(r.Context(), sqlite.CheckinRecord{
		UserID:           req.UserID,
		UserName:         req.UserName,
		StationID:        req.StationID,
		StationName:      req.StationName,
		CheckInLatitude:  req.CheckInLatitude,
		CheckInLongitude: req.CheckInLongitude,
		Address:          req.Address,
		QRData:           req.QRData,
		TimeIn:           h.Clock.Now(),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check in", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAttendanceDTO(*rec))
}

// CheckOut closes an open check-in record.
func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req CheckOutRequest
	json.NewDecoder(r.Body).Decode(&req) // coordinates optional

	rec, err := h.Store.CheckOut(r.Context(), id, req.CheckOutLatitude, req.CheckOutLongitude, h.Clock.Now())
	if err != nil {
		writeDomainError(w, err, "Failed to check out")
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceDTO(*rec))
}

// UpdateAttendanceRecord edits a record's descriptive fields.
func (h *Handler) UpdateAttendanceRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req CheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rec, err := h.Store.UpdateAttendanceRecord(r.Context(), sqlite.CheckinRecord{
		ID:          id,
		UserName:    req.UserName,
		StationName: req.StationName,
		Address:     req.Address,
	})
	if err != nil {
		writeDomainError(w, err, "Failed to update attendance record")
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceDTO(*rec))
}

// DeleteAttendanceRecord removes a record.
func (h *Handler) DeleteAttendanceRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.Store.DeleteAttendanceRecord(r.Context(), id); err != nil {
		writeDomainError(w, err, "Failed to delete attendance record")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Attendance record deleted"})
}

func toAttendanceDTO(rec sqlite.CheckinRecord) AttendanceDTO {
	dto := AttendanceDTO{
		ID:                rec.ID,
		UserID:            rec.UserID,
		UserName:          rec.UserName,
		StationID:         rec.StationID,
		StationName:       rec.StationName,
		CheckInLatitude:   rec.CheckInLatitude,
		CheckInLongitude:  rec.CheckInLongitude,
		CheckOutLatitude:  rec.CheckOutLatitude,
		CheckOutLongitude: rec.CheckOutLongitude,
		Address:           rec.Address,
		QRData:            rec.QRData,
		Status:            rec.Status,
		TimeIn:            ledger.FormatDateTime(rec.TimeIn),
	}
	if rec.TimeOut != nil {
		out := ledger.FormatDateTime(*rec.TimeOut)
		dto.TimeOut = &out
	}
	return dto
}

// =============================================================================
// VEHICLE CONVERSIONS
// =============================================================================

var serviceDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func conversionFromRequest(req ConversionRequest) (sqlite.VehicleConversion, string) {
	if req.VehiclePlate == "" || req.VehicleType == "" || req.ConversionType == "" {
		return sqlite.VehicleConversion{}, "vehiclePlate, vehicleType and conversionType are required"
	}
	if req.AmountCharged <= 0 {
		return sqlite.VehicleConversion{}, "amountCharged must be a positive number"
	}
	if !serviceDateRe.MatchString(req.ServiceDate) {
		return sqlite.VehicleConversion{}, "serviceDate must be in YYYY-MM-DD format"
	}
	date, err := ledger.ParseDate(req.ServiceDate)
	if err != nil {
		return sqlite.VehicleConversion{}, "serviceDate must be a valid date"
	}
	return sqlite.VehicleConversion{
		VehiclePlate:   strings.ToUpper(strings.TrimSpace(req.VehiclePlate)),
		VehicleType:    req.VehicleType,
		ConversionType: req.ConversionType,
		AmountCharged:  ledger.Dec(req.AmountCharged),
		ServiceDate:    date,
		Comment:        req.Comment,
	}, ""
}

// ListConversions returns all vehicle conversion jobs, newest first.
func (h *Handler) ListConversions(w http.ResponseWriter, r *http.Request) {
	conversions, err := h.Store.Conversions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list conversions", err)
		return
	}
	writeJSON(w, http.StatusOK, toConversionDTOs(conversions))
}

// ListConversionsByVehicle returns one vehicle's conversion history.
func (h *Handler) ListConversionsByVehicle(w http.ResponseWriter, r *http.Request) {
	plate := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "plate")))
	if plate == "" {
		writeError(w, http.StatusBadRequest, "Vehicle plate is required", nil)
		return
	}
	conversions, err := h.Store.ConversionsByVehicle(r.Context(), plate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list conversions", err)
		return
	}
	writeJSON(w, http.StatusOK, toConversionDTOs(conversions))
}

// GetConversion returns one conversion job.
func (h *Handler) GetConversion(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	v, err := h.Store.Conversion(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get conversion", err)
		return
	}
	if v == nil {
		writeError(w, http.StatusNotFound, "Conversion not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toConversionDTO(*v))
}

// CreateConversion records a vehicle conversion job.
func (h *Handler) CreateConversion(w http.ResponseWriter, r *http.Request) {
	var req ConversionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	v, msg := conversionFromRequest(req)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg, nil)
		return
	}
	created, err := h.Store.CreateConversion(r.Context(), v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create conversion", err)
		return
	}
	writeJSON(w, http.StatusCreated, toConversionDTO(*created))
}

// UpdateConversion edits a conversion job.
func (h *Handler) UpdateConversion(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req ConversionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	v, msg := conversionFromRequest(req)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg, nil)
		return
	}
	v.ID = id
	updated, err := h.Store.UpdateConversion(r.Context(), v)
	if err != nil {
		writeDomainError(w, err, "Failed to update conversion")
		return
	}
	writeJSON(w, http.StatusOK, toConversionDTO(*updated))
}

// DeleteConversion removes a conversion job.
func (h *Handler) DeleteConversion(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.Store.DeleteConversion(r.Context(), id); err != nil {
		writeDomainError(w, err, "Failed to delete conversion")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Conversion deleted"})
}

// GetConversionStats returns overall totals plus a per-type breakdown.
func (h *Handler) GetConversionStats(w http.ResponseWriter, r *http.Request) {
	total, amount, byType, err := h.Store.ConversionStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get conversion stats", err)
		return
	}
	typeDTOs := make([]ConversionTypeStatsDTO, len(byType))
	for i, t := range byType {
		typeDTOs[i] = ConversionTypeStatsDTO{
			ConversionType: t.ConversionType,
			Count:          t.Count,
			TotalAmount:    f64(t.TotalAmount),
		}
	}
	writeJSON(w, http.StatusOK, ConversionStatsDTO{
		TotalConversions: total,
		TotalAmount:      f64(amount),
		ByType:           typeDTOs,
	})
}

func toConversionDTO(v sqlite.VehicleConversion) ConversionDTO {
	return ConversionDTO{
		ID:             v.ID,
		VehiclePlate:   v.VehiclePlate,
		VehicleType:    v.VehicleType,
		ConversionType: v.ConversionType,
		AmountCharged:  f64(v.AmountCharged),
		ServiceDate:    v.ServiceDate.Format(ledger.DateFormat),
		Comment:        v.Comment,
		CreatedAt:      ledger.FormatDateTime(v.CreatedAt),
	}
}

func toConversionDTOs(in []sqlite.VehicleConversion) []ConversionDTO {
	dtos := make([]ConversionDTO, len(in))
	for i, v := range in {
		dtos[i] = toConversionDTO(v)
	}
	return dtos
}

// =============================================================================
// BRANCHES
// =============================================================================

// ListBranches returns the branch (vehicle) registry.
func (h *Handler) ListBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := h.Store.Branches(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list branches", err)
		return
	}
	dtos := make([]BranchDTO, len(branches))
	for i, b := range branches {
		dtos[i] = BranchDTO{
			ID:        b.ID,
			Name:      b.Name,
			Address:   b.Address,
			CreatedAt: ledger.FormatDateTime(b.CreatedAt),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateBranch registers a branch.
func (h *Handler) CreateBranch(w http.ResponseWriter, r *http.Request) {
	var req BranchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	b, err := h.Store.AddBranch(r.Context(), sqlite.Branch{Name: req.Name, Address: req.Address})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create branch", err)
		return
	}
	writeJSON(w, http.StatusCreated, BranchDTO{
		ID:        b.ID,
		Name:      b.Name,
		Address:   b.Address,
		CreatedAt: ledger.FormatDateTime(b.CreatedAt),
	})
}
