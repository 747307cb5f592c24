package http

import (
	"net/http"

	"github.com/mind-engage/mindengage-coe/internal/coe"
	"github.com/mind-engage/mindengage-coe/internal/grading"
	"github.com/mind-engage/mindengage-coe/internal/seating"
)

type roomDTO struct {
	RoomNo   string `json:"room_no" validate:"required,max=32"`
	Block    string `json:"block_name" validate:"max=64"`
	Capacity int    `json:"capacity" validate:"gt=0,lte=1000"`
	Priority int    `json:"priority_order" validate:"gte=0"`
}

type roomsReq struct {
	Rooms []roomDTO `json:"rooms" validate:"required,min=1,dive"`
}

// PUT /rooms
func PutRoomsHandler(svc *coe.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req roomsReq
		if !decodeValid(w, r, &req) {
			return
		}
		rooms := make([]seating.Room, 0, len(req.Rooms))
		for _, d := range req.Rooms {
			rooms = append(rooms, seating.Room{Number: d.RoomNo, Block: d.Block, Capacity: d.Capacity, Priority: d.Priority})
		}
		if err := svc.SaveRooms(r.Context(), rooms); err != nil {
			writeErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]int{"saved": len(rooms)})
	}
}

// GET /rooms
func ListRoomsHandler(svc *coe.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, err := svc.Rooms(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"rooms": rooms, "total_capacity": seating.TotalCapacity(rooms)})
	}
}

type courseDTO struct {
	CourseCode string  `json:"course_code" validate:"required,max=32"`
	Title      string  `json:"title" validate:"max=200"`
	Credits    float64 `json:"credits" validate:"gte=0,lte=40"`
	MaxCIE     float64 `json:"max_cie" validate:"gte=0,lte=200"`
	MaxSEE     float64 `json:"max_see" validate:"gte=0,lte=200"`
}

type coursesReq struct {
	Courses []courseDTO `json:"courses" validate:"required,min=1,dive"`
}

// PUT /courses
func PutCoursesHandler(svc *coe.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req coursesReq
		if !decodeValid(w, r, &req) {
			return
		}
		out := make([]grading.Policy, 0, len(req.Courses))
		for _, d := range req.Courses {
			out = append(out, grading.Policy{CourseCode: d.CourseCode, Title: d.Title, Credits: d.Credits, MaxCIE: d.MaxCIE, MaxSEE: d.MaxSEE})
		}
		if err := svc.SaveCourses(r.Context(), out); err != nil {
			writeErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]int{"saved": len(out)})
	}
}

// GET /courses
func ListCoursesHandler(svc *coe.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courses, err := svc.Courses(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"courses": courses})
	}
}
