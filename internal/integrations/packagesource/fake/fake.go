package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/BearBump/DelayWatch/internal/integrations/packagesource"
	"github.com/BearBump/DelayWatch/internal/models"
)

var lifecycle = []models.EventType{
	models.EventReceived,
	models.EventClassified,
	models.EventDispatched,
	models.EventInFlight,
	models.EventCustomsClearance,
	models.EventOutForDelivery,
	models.EventDelivered,
}

var cities = []string{"La Paz", "Santa Cruz", "Cochabamba", "Sucre", "Tarija", "Oruro"}

// Client: детерминированный источник посылок для демо и локального запуска.
// Свежесть последнего события и длина истории зависят от fnv-хэша трек-номера.
type Client struct {
	n   int
	now func() time.Time
}

func New(n int, now func() time.Time) *Client {
	if n <= 0 {
		n = 20
	}
	if now == nil {
		now = time.Now
	}
	return &Client{n: n, now: now}
}

var _ packagesource.Source = (*Client)(nil)

func (c *Client) ListPackages(ctx context.Context) ([]models.Package, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := c.now().UTC().Truncate(time.Minute)

	pkgs := make([]models.Package, 0, c.n)
	for i := 0; i < c.n; i++ {
		pkgs = append(pkgs, generate(fmt.Sprintf("DW-%04d", i+1), now))
	}
	return packagesource.Normalize(pkgs), nil
}

func generate(tn string, now time.Time) models.Package {
	h := fnv.New32a()
	_, _ = h.Write([]byte(tn))
	v := h.Sum32()

	p := models.Package{
		TrackingNumber:  tn,
		Description:     "fake package " + tn,
		Priority:        []string{models.PriorityLow, models.PriorityMedium, models.PriorityHigh}[v%3],
		OriginCity:      cities[v%uint32(len(cities))],
		DestinationCity: cities[(v/7)%uint32(len(cities))],
		RecipientName:   "Recipient " + tn,
		SenderName:      "Sender " + tn,
		Events:          []models.TrackingEvent{},
	}

	// каждая 11-я посылка без истории
	if v%11 == 0 {
		return p
	}

	stages := int(v%uint32(len(lifecycle))) + 1
	// 0..9.75 часов с последнего события, шаг 15 минут
	stale := time.Duration(v%40) * 15 * time.Minute
	last := now.Add(-stale)

	for s := 0; s < stages; s++ {
		at := last.Add(-time.Duration(stages-1-s) * 3 * time.Hour)
		p.Events = append(p.Events, models.TrackingEvent{
			ID:        fmt.Sprintf("%s-%d", tn, s+1),
			EventType: lifecycle[s],
			Location:  cities[(int(v)+s)%len(cities)],
			Timestamp: at,
			Operator:  "fake",
		})
	}
	return p
}
