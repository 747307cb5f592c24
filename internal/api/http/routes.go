package http

import (
	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-coe/internal/coe"
	"github.com/mind-engage/mindengage-coe/internal/rbac"
	"github.com/mind-engage/mindengage-coe/internal/storage"
)

// MountCOE registers the examination routes on an already authenticated router.
func MountCOE(r chi.Router, svc *coe.Service, bs storage.BlobStore) {
	r.With(rbac.Require(rbac.PermMasterWrite)).Put("/rooms", PutRoomsHandler(svc))
	r.With(rbac.Require(rbac.PermMasterRead)).Get("/rooms", ListRoomsHandler(svc))
	r.With(rbac.Require(rbac.PermMasterWrite)).Put("/courses", PutCoursesHandler(svc))
	r.With(rbac.Require(rbac.PermMasterRead)).Get("/courses", ListCoursesHandler(svc))

	r.With(rbac.Require(rbac.PermBundlesGenerate)).Route("/files", func(fr chi.Router) {
		MountFiles(fr, bs)
	})

	r.Route("/cycles", func(cr chi.Router) {
		cr.With(rbac.Require(rbac.PermCycleManage)).Post("/", CreateCycleHandler(svc))
		cr.With(rbac.Require(rbac.PermSeatingView)).Get("/", ListCyclesHandler(svc))

		cr.Route("/{cycleID}", func(one chi.Router) {
			one.With(rbac.Require(rbac.PermSeatingView)).Get("/", GetCycleHandler(svc))
			one.With(rbac.Require(rbac.PermCycleManage)).Post("/advance", AdvanceCycleHandler(svc))
			one.With(rbac.Require(rbac.PermCycleManage)).Post("/revert", RevertCycleHandler(svc))
			one.With(rbac.Require(rbac.PermCycleManage)).Get("/events", ListEventsHandler(svc))

			one.Route("/sessions/{date}/{slot}", func(sr chi.Router) {
				sr.With(rbac.Require(rbac.PermSeatingAllocate)).Post("/allocate", AllocateHandler(svc))
				sr.With(rbac.Require(rbac.PermSeatingView)).Get("/seats", ListSeatsHandler(svc))
				sr.With(rbac.Require(rbac.PermSeatingView)).Get("/summary", SummaryHandler(svc))
				sr.With(rbac.Require(rbac.PermAttendanceMark)).Post("/attendance", AttendanceHandler(svc))
				sr.With(rbac.Require(rbac.PermBundlesGenerate)).Post("/bundles", GenerateBundlesHandler(svc))
				sr.With(rbac.Require(rbac.PermBundlesGenerate)).Get("/bundles", ListBundlesHandler(svc))
			})

			one.Route("/results", func(rr chi.Router) {
				rr.With(rbac.Require(rbac.PermLedgerView)).Get("/", ListResultsHandler(svc))
				rr.With(rbac.Require(rbac.PermResultsEnter)).Post("/marks", EnterMarksHandler(svc))
				rr.With(rbac.Require(rbac.PermResultsDecode)).Post("/decode", DecodeHandler(svc))
				rr.With(rbac.Require(rbac.PermResultsGrade)).Post("/grade", GradeHandler(svc))
				rr.With(rbac.Require(rbac.PermResultsModerate)).Post("/{studentID}/{courseCode}/moderate", ModerateHandler(svc))
			})
			one.With(rbac.Require(rbac.PermLedgerView)).Get("/ledger", LedgerHandler(svc))
		})
	})
}
