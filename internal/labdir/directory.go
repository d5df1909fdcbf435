// Package labdir resolves lab records for display next to bookings.
package labdir

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/iliyamo/lab-booking/internal/model"
)

// ErrUnknownLab is returned when the lab service has no record for an id.
var ErrUnknownLab = errors.New("unknown lab")

// Directory looks up labs by id.  Implementations are read only.
type Directory interface {
	Lab(ctx context.Context, id string) (model.Lab, error)
}

// LabSource is the part of the remote client the directory needs.
type LabSource interface {
	GetLab(ctx context.Context, id string) (model.Lab, error)
}

// RemoteDirectory reads labs straight from the remote service.
type RemoteDirectory struct {
	src LabSource
}

func NewRemoteDirectory(src LabSource) *RemoteDirectory {
	return &RemoteDirectory{src: src}
}

func (d *RemoteDirectory) Lab(ctx context.Context, id string) (model.Lab, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Lab{}, ErrUnknownLab
	}
	lab, err := d.src.GetLab(ctx, id)
	if err != nil {
		return model.Lab{}, err
	}
	if lab.ID == "" {
		return model.Lab{}, ErrUnknownLab
	}
	return lab, nil
}

// Row is a booking decorated with the lab it takes place in.
type Row struct {
	model.Booking
	LabName     string `json:"labName,omitempty"`
	LabLocation string `json:"labLocation,omitempty"`
}

// Join resolves the lab of every booking, looking each lab id up once.
// Labs that cannot be resolved leave the name and location empty.
func Join(ctx context.Context, dir Directory, bookings []model.Booking) []Row {
	rows := make([]Row, 0, len(bookings))
	seen := make(map[string]*model.Lab)
	for _, b := range bookings {
		row := Row{Booking: b}
		lab, ok := seen[b.LabID]
		if !ok {
			lab = nil
			if dir != nil && b.LabID != "" {
				l, err := dir.Lab(ctx, b.LabID)
				if err == nil {
					lab = &l
				} else if !errors.Is(err, ErrUnknownLab) {
					log.Printf("labdir: lookup %s: %v", b.LabID, err)
				}
			}
			seen[b.LabID] = lab
		}
		if lab != nil {
			row.LabName = lab.Name
			row.LabLocation = lab.Location
		}
		rows = append(rows, row)
	}
	return rows
}
