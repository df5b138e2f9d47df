package areas

import (
	"fmt"

	opticserr "github.com/auth-platform/libs/go/optics/errors"
	"github.com/auth-platform/libs/go/optics/immutable"
	"github.com/auth-platform/libs/go/optics/lens"
	"github.com/auth-platform/libs/go/optics/path"
)

// Kind names a message.
type Kind string

const (
	KindSetTitle          Kind = "set_title"
	KindBeginMoveLocation Kind = "begin_move_location"
	KindMoveLocation      Kind = "move_location"
	KindEndMoveLocation   Kind = "end_move_location"
	KindInsertLocation    Kind = "insert_location"
	KindRemoveLocation    Kind = "remove_location"
	KindSelectArea        Kind = "select_area"
	KindUpdateAreaTitle   Kind = "update_area_title"
	KindAddArea           Kind = "add_area"
	KindBeginDefineArea   Kind = "begin_define_area"
	KindEndDefineArea     Kind = "end_define_area"
	KindChangeMapView     Kind = "change_map_view"
)

// Message is a single user intent. Fields not used by Kind are ignored.
type Message struct {
	Kind       Kind        `yaml:"kind"`
	Title      string      `yaml:"title,omitempty"`
	Area       int         `yaml:"area,omitempty"`
	Coordinate int         `yaml:"coordinate,omitempty"`
	Location   *Coordinate `yaml:"location,omitempty"`
	ZoomLevel  int         `yaml:"zoom,omitempty"`
}

// Updater applies messages to a State.
type Updater struct {
	compiler *lens.Compiler
}

// NewUpdater registers the model constructors on c and returns an Updater.
func NewUpdater(c *lens.Compiler) (*Updater, error) {
	if err := Register(c.Registry()); err != nil {
		return nil, err
	}
	return &Updater{compiler: c}, nil
}

func at(area, coordinate int) path.ParseOption {
	return path.WithVars(map[string]any{"a": area, "i": coordinate})
}

// Update returns the state that results from applying msg to s.
func (u *Updater) Update(s *State, msg Message) (*State, error) {
	c := u.compiler
	switch msg.Kind {
	case KindSetTitle:
		return lens.With(c, s, "s.Title", msg.Title)

	case KindBeginMoveLocation:
		return lens.With(c, s, "s.Areas[a].Coordinates[i].IsDragging", true, at(msg.Area, msg.Coordinate))

	case KindMoveLocation:
		if msg.Location == nil {
			return nil, opticserr.Newf(opticserr.CodeTypeMismatch, "%s requires a location", msg.Kind)
		}
		return lens.With(c, s, "s.Areas[a].Coordinates[i].Coordinate", *msg.Location, at(msg.Area, msg.Coordinate))

	case KindEndMoveLocation:
		return lens.With(c, s, "s.Areas[a].Coordinates[i].IsDragging", false, at(msg.Area, msg.Coordinate))

	case KindInsertLocation:
		if msg.Location == nil {
			return nil, opticserr.Newf(opticserr.CodeTypeMismatch, "%s requires a location", msg.Kind)
		}
		vertex := DraggableCoordinate{Coordinate: *msg.Location}
		return u.editCoordinates(s, msg.Area, func(l immutable.List[DraggableCoordinate]) (immutable.List[DraggableCoordinate], error) {
			return l.Insert(msg.Coordinate, vertex)
		})

	case KindRemoveLocation:
		return u.editCoordinates(s, msg.Area, func(l immutable.List[DraggableCoordinate]) (immutable.List[DraggableCoordinate], error) {
			return l.RemoveAt(msg.Coordinate)
		})

	case KindSelectArea:
		return u.selectArea(s, msg.Area)

	case KindUpdateAreaTitle:
		return lens.With(c, s, "s.Areas[a].Note", msg.Title, at(msg.Area, 0))

	case KindAddArea:
		added, err := lens.With(c, s, "s.Areas", s.Areas().Add(NewArea(immutable.Of[DraggableCoordinate](), msg.Title, false, false)))
		if err != nil {
			return nil, err
		}
		index := added.Areas().Len() - 1
		if added, err = u.selectArea(added, index); err != nil {
			return nil, err
		}
		return u.beginDefine(added, index)

	case KindBeginDefineArea:
		return u.beginDefine(s, msg.Area)

	case KindEndDefineArea:
		return lens.With(c, s, "s.Areas[a].IsDefined", true, at(msg.Area, 0))

	case KindChangeMapView:
		next, err := lens.With(c, s, "s.MapZoomLevel", msg.ZoomLevel)
		if err != nil || msg.Location == nil {
			return next, err
		}
		return lens.With(c, next, "s.Center", *msg.Location)
	}
	return nil, opticserr.Newf(opticserr.CodePathNotSupported, "unknown message kind %q", msg.Kind)
}

// Replay folds msgs over s, stopping at the first failure.
func (u *Updater) Replay(s *State, msgs []Message) (*State, error) {
	for i, msg := range msgs {
		next, err := u.Update(s, msg)
		if err != nil {
			return s, fmt.Errorf("message %d (%s): %w", i, msg.Kind, err)
		}
		s = next
	}
	return s, nil
}

func (u *Updater) editCoordinates(s *State, area int, edit func(immutable.List[DraggableCoordinate]) (immutable.List[DraggableCoordinate], error)) (*State, error) {
	var editErr error
	next, err := lens.Modify(u.compiler, s, "s.Areas[a].Coordinates", func(l immutable.List[DraggableCoordinate]) immutable.List[DraggableCoordinate] {
		edited, err := edit(l)
		if err != nil {
			editErr = err
			return l
		}
		return edited
	}, at(area, 0))
	if err != nil {
		return nil, err
	}
	if editErr != nil {
		return nil, editErr
	}
	return next, nil
}

func (u *Updater) selectArea(s *State, index int) (*State, error) {
	return u.setEach(s, "s.Areas[a].IsSelected", func(i int) bool { return i == index })
}

func (u *Updater) beginDefine(s *State, index int) (*State, error) {
	return u.setEach(s, "s.Areas[a].IsDefined", func(i int) bool { return i != index })
}

func (u *Updater) setEach(s *State, expr string, value func(int) bool) (*State, error) {
	var err error
	for i := range s.Areas().Len() {
		if s, err = lens.With(u.compiler, s, expr, value(i), at(i, 0)); err != nil {
			return nil, err
		}
	}
	return s, nil
}
