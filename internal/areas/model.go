// Package areas is a headless rendition of a map editor's state: named
// polygons of draggable coordinates, a selection and a map view. Every update
// produces a new State through compiled setters.
package areas

import (
	"math"
	"reflect"

	"gopkg.in/yaml.v3"

	"github.com/auth-platform/libs/go/optics/immutable"
	"github.com/auth-platform/libs/go/optics/reconstruct"
)

// Coordinate is a WGS84 position in degrees.
type Coordinate struct {
	Latitude  float64 `yaml:"lat"`
	Longitude float64 `yaml:"lng"`
}

// DraggableCoordinate is a polygon vertex that may be mid-drag.
type DraggableCoordinate struct {
	Coordinate Coordinate `yaml:"coordinate"`
	IsDragging bool       `yaml:"dragging,omitempty"`
}

// Draggable creates a vertex at lat, lng that is not being dragged.
func Draggable(lat, lng float64) DraggableCoordinate {
	return DraggableCoordinate{Coordinate: Coordinate{Latitude: lat, Longitude: lng}}
}

// Area is a named polygon.
type Area struct {
	coordinates immutable.List[DraggableCoordinate] `lens:"Coordinates"`
	note        string                              `lens:"Note"`
	isSelected  bool                                `lens:"IsSelected"`
	isDefined   bool                                `lens:"IsDefined"`
}

func NewArea(coordinates immutable.List[DraggableCoordinate], note string, isSelected, isDefined bool) *Area {
	return &Area{coordinates: coordinates, note: note, isSelected: isSelected, isDefined: isDefined}
}

func (a *Area) Coordinates() immutable.List[DraggableCoordinate] { return a.coordinates }
func (a *Area) Note() string                                      { return a.note }
func (a *Area) IsSelected() bool                                  { return a.isSelected }
func (a *Area) IsDefined() bool                                   { return a.isDefined }

type areaYAML struct {
	Note        string                              `yaml:"note"`
	Selected    bool                                `yaml:"selected,omitempty"`
	Defined     bool                                `yaml:"defined"`
	Coordinates immutable.List[DraggableCoordinate] `yaml:"coordinates"`
}

// MarshalYAML implements yaml.Marshaler.
func (a *Area) MarshalYAML() (any, error) {
	return areaYAML{Note: a.note, Selected: a.isSelected, Defined: a.isDefined, Coordinates: a.coordinates}, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *Area) UnmarshalYAML(node *yaml.Node) error {
	var raw areaYAML
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*a = *NewArea(raw.Coordinates, raw.Note, raw.Selected, raw.Defined)
	return nil
}

// State is the whole editor state.
type State struct {
	title        string                `lens:"Title"`
	areas        immutable.List[*Area] `lens:"Areas"`
	mapZoomLevel int                   `lens:"MapZoomLevel"`
	center       Coordinate            `lens:"Center"`
}

func NewState(title string, areas immutable.List[*Area], mapZoomLevel int, center Coordinate) *State {
	return &State{title: title, areas: areas, mapZoomLevel: mapZoomLevel, center: center}
}

func (s *State) Title() string                { return s.title }
func (s *State) Areas() immutable.List[*Area] { return s.areas }
func (s *State) MapZoomLevel() int            { return s.mapZoomLevel }
func (s *State) Center() Coordinate           { return s.center }

type stateYAML struct {
	Title        string                `yaml:"title"`
	MapZoomLevel int                   `yaml:"zoom"`
	Center       Coordinate            `yaml:"center"`
	Areas        immutable.List[*Area] `yaml:"areas"`
}

// MarshalYAML implements yaml.Marshaler.
func (s *State) MarshalYAML() (any, error) {
	return stateYAML{Title: s.title, MapZoomLevel: s.mapZoomLevel, Center: s.center, Areas: s.areas}, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *State) UnmarshalYAML(node *yaml.Node) error {
	var raw stateYAML
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*s = *NewState(raw.Title, raw.Areas, raw.MapZoomLevel, raw.Center)
	return nil
}

// Register adds the State and Area constructors to r. Types already known
// to r are left alone.
func Register(r *reconstruct.Registry) error {
	if r.Has(reflect.TypeFor[*State]()) {
		return nil
	}
	if err := r.Register(NewState, "title", "areas", "mapZoomLevel", "center"); err != nil {
		return err
	}
	return r.Register(NewArea, "coordinates", "note", "isSelected", "isDefined")
}

// InitialState returns two sample fields with the view centred on them.
func InitialState() *State {
	areas := immutable.Of(
		NewArea(immutable.Of(
			Draggable(47.946812, 13.777095),
			Draggable(47.944375, 13.777380),
			Draggable(47.944338, 13.776286),
			Draggable(47.946508, 13.776049),
			Draggable(47.946485, 13.776685),
		), "Enser", false, true),
		NewArea(immutable.Of(
			Draggable(47.946927, 13.777057),
			Draggable(47.947813, 13.776992),
			Draggable(47.948885, 13.780077),
			Draggable(47.948237, 13.780352),
		), "Galler", false, true),
	)
	return NewState("", areas, 15, Center(areas))
}

// Center returns the geographic midpoint of every vertex, or the zero
// coordinate when there are none.
func Center(areas immutable.List[*Area]) Coordinate {
	var x, y, z float64
	count := 0
	for _, area := range areas.All() {
		for _, c := range area.Coordinates().All() {
			lat := c.Coordinate.Latitude * math.Pi / 180
			lng := c.Coordinate.Longitude * math.Pi / 180
			x += math.Cos(lat) * math.Cos(lng)
			y += math.Cos(lat) * math.Sin(lng)
			z += math.Sin(lat)
			count++
		}
	}
	if count == 0 {
		return Coordinate{}
	}
	x, y, z = x/float64(count), y/float64(count), z/float64(count)
	lng := math.Atan2(y, x)
	lat := math.Atan2(z, math.Sqrt(x*x+y*y))
	return Coordinate{Latitude: lat * 180 / math.Pi, Longitude: lng * 180 / math.Pi}
}
