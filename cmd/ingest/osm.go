package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/segfault/civicgrid/backend/internal/domain"
	"github.com/segfault/civicgrid/backend/internal/geo"
)

const overpassEndpoint = "https://overpass-api.de/api/interpreter"

type boundingBox struct {
	MinLat float64
	MinLng float64
	MaxLat float64
	MaxLng float64
}

func parseBBox(raw string) (boundingBox, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return boundingBox{}, fmt.Errorf("expected minLat,minLng,maxLat,maxLng, got %q", raw)
	}
	values := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return boundingBox{}, fmt.Errorf("component %d of %q is not a number: %w", i+1, raw, err)
		}
		values[i] = v
	}
	box := boundingBox{MinLat: values[0], MinLng: values[1], MaxLat: values[2], MaxLng: values[3]}
	if box.MinLat >= box.MaxLat || box.MinLng >= box.MaxLng {
		return boundingBox{}, fmt.Errorf("bounding box %q is empty or inverted", raw)
	}
	return box, nil
}

type overpassElement struct {
	Type  string            `json:"type"`
	ID    int64             `json:"id"`
	Lat   float64           `json:"lat"`
	Lon   float64           `json:"lon"`
	Nodes []int64           `json:"nodes"`
	Tags  map[string]string `json:"tags"`
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

// fetchOSMNetwork downloads all highway ways inside the box and converts
// them into the node/edge model. Two-way streets become a directed edge
// pair; ways tagged oneway=yes get a single edge.
func fetchOSMNetwork(ctx context.Context, box boundingBox) ([]domain.Node, []domain.Edge, error) {
	query := fmt.Sprintf(
		`[out:json][timeout:60];way["highway"](%f,%f,%f,%f);(._;>;);out body;`,
		box.MinLat, box.MinLng, box.MaxLat, box.MaxLng,
	)

	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, overpassEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("overpass request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, nil, fmt.Errorf("overpass returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, nil, fmt.Errorf("decode overpass response: %w", err)
	}

	byOSMID := make(map[int64]domain.Node)
	var ways []overpassElement
	for _, el := range payload.Elements {
		switch el.Type {
		case "node":
			byOSMID[el.ID] = domain.Node{
				ID:        uuid.NewString(),
				OSMID:     strconv.FormatInt(el.ID, 10),
				Latitude:  el.Lat,
				Longitude: el.Lon,
			}
		case "way":
			ways = append(ways, el)
		}
	}

	nodes := make([]domain.Node, 0, len(byOSMID))
	used := make(map[int64]bool)
	var edges []domain.Edge

	for _, way := range ways {
		oneWay := way.Tags["oneway"] == "yes"
		for i := 0; i+1 < len(way.Nodes); i++ {
			from, okFrom := byOSMID[way.Nodes[i]]
			to, okTo := byOSMID[way.Nodes[i+1]]
			if !okFrom || !okTo {
				continue
			}
			if !used[way.Nodes[i]] {
				used[way.Nodes[i]] = true
				nodes = append(nodes, from)
			}
			if !used[way.Nodes[i+1]] {
				used[way.Nodes[i+1]] = true
				nodes = append(nodes, to)
			}

			distance := geo.Distance(from.Latitude, from.Longitude, to.Latitude, to.Longitude)
			edges = append(edges, domain.Edge{
				ID:          uuid.NewString(),
				StartNodeID: from.ID,
				EndNodeID:   to.ID,
				Distance:    distance,
				BaseCost:    distance,
				Penalty:     1.0,
			})
			if !oneWay {
				edges = append(edges, domain.Edge{
					ID:          uuid.NewString(),
					StartNodeID: to.ID,
					EndNodeID:   from.ID,
					Distance:    distance,
					BaseCost:    distance,
					Penalty:     1.0,
				})
			}
		}
	}

	return nodes, edges, nil
}
