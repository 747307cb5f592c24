// Command coectl loads examination master data (rooms and course policies)
// from a YAML file into the configured store.
//
//	coectl -f master.yaml
//	coectl -f master.yaml -dry-run
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mind-engage/mindengage-coe/internal/coe"
	"github.com/mind-engage/mindengage-coe/internal/config"
	"github.com/mind-engage/mindengage-coe/internal/grading"
	"github.com/mind-engage/mindengage-coe/internal/seating"
	"github.com/mind-engage/mindengage-coe/internal/storage"
)

type roomYAML struct {
	RoomNo   string `yaml:"room_no"`
	Block    string `yaml:"block_name"`
	Capacity int    `yaml:"capacity"`
	Priority int    `yaml:"priority_order"`
}

type courseYAML struct {
	CourseCode string   `yaml:"course_code"`
	Title      string   `yaml:"title"`
	Credits    float64  `yaml:"credits"`
	MaxCIE     *float64 `yaml:"max_cie"`
	MaxSEE     *float64 `yaml:"max_see"`
}

type masterFile struct {
	Rooms   []roomYAML   `yaml:"rooms"`
	Courses []courseYAML `yaml:"courses"`
}

// parseMaster decodes a master data document. Omitted maxima take the
// institutional defaults; an explicit max_see: 0 marks an internal-only course.
func parseMaster(r io.Reader) ([]seating.Room, []grading.Policy, error) {
	var mf masterFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&mf); err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("parse master data: %w", err)
	}
	rooms := make([]seating.Room, 0, len(mf.Rooms))
	for _, r := range mf.Rooms {
		rooms = append(rooms, seating.Room{Number: r.RoomNo, Block: r.Block, Capacity: r.Capacity, Priority: r.Priority})
	}
	courses := make([]grading.Policy, 0, len(mf.Courses))
	for _, c := range mf.Courses {
		p := grading.DefaultPolicy(c.CourseCode)
		p.Title, p.Credits = c.Title, c.Credits
		if c.MaxCIE != nil {
			p.MaxCIE = *c.MaxCIE
		}
		if c.MaxSEE != nil {
			p.MaxSEE = *c.MaxSEE
		}
		courses = append(courses, p)
	}
	return rooms, courses, nil
}

func main() {
	file := flag.String("f", "master.yaml", "master data YAML file")
	dry := flag.Bool("dry-run", false, "parse and report without writing")
	flag.Parse()

	cfg := config.FromEnv()

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("open %s: %v", *file, err)
	}
	defer f.Close()
	rooms, courses, err := parseMaster(f)
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("%s: %d rooms (capacity %d), %d courses", *file, len(rooms), seating.TotalCapacity(rooms), len(courses))
	if *dry {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	store, closeStore, err := coe.OpenStore(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("store open failed: %v", err)
	}
	defer closeStore()

	svc := coe.NewService(store, storage.NewMemStore())
	if len(rooms) > 0 {
		if err := svc.SaveRooms(ctx, rooms); err != nil {
			log.Fatalf("rooms: %v", err)
		}
	}
	if len(courses) > 0 {
		if err := svc.SaveCourses(ctx, courses); err != nil {
			log.Fatalf("courses: %v", err)
		}
	}
	log.Printf("master data loaded into %s", cfg.DBDriver)
}
