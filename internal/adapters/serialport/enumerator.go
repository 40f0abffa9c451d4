package serialport

import (
	"context"

	"go.bug.st/serial/enumerator"

	"github.com/bft-labs/clockbridge/internal/ports"
)

// Enumerator lists serial ports with their USB descriptors.
type Enumerator struct {
	// List defaults to enumerator.GetDetailedPortsList.
	List func() ([]*enumerator.PortDetails, error)
}

// Discover returns every serial port the OS reports.
func (e Enumerator) Discover(ctx context.Context) ([]ports.PortInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	list := e.List
	if list == nil {
		list = enumerator.GetDetailedPortsList
	}

	details, err := list()
	if err != nil {
		return nil, err
	}
	infos := make([]ports.PortInfo, 0, len(details))
	for _, d := range details {
		if d == nil {
			continue
		}
		infos = append(infos, ports.PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return infos, nil
}

var _ ports.Discoverer = Enumerator{}
