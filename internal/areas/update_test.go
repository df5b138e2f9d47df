package areas_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	opticserr "github.com/auth-platform/libs/go/optics/errors"
	"github.com/auth-platform/libs/go/optics/immutable"
	"github.com/auth-platform/libs/go/optics/internal/areas"
	"github.com/auth-platform/libs/go/optics/lens"
	"github.com/auth-platform/libs/go/optics/reconstruct"
)

func newUpdater(t *testing.T) *areas.Updater {
	t.Helper()
	u, err := areas.NewUpdater(lens.New(lens.WithTieBreak(reconstruct.TieBreakError)))
	require.NoError(t, err)
	return u
}

func loc(lat, lng float64) *areas.Coordinate {
	return &areas.Coordinate{Latitude: lat, Longitude: lng}
}

func TestInitialState(t *testing.T) {
	s := areas.InitialState()

	require.Equal(t, 2, s.Areas().Len())
	assert.Equal(t, "Enser", s.Areas().At(0).Note())
	assert.Equal(t, 5, s.Areas().At(0).Coordinates().Len())
	assert.Equal(t, "Galler", s.Areas().At(1).Note())
	assert.Equal(t, 4, s.Areas().At(1).Coordinates().Len())
	assert.Equal(t, 15, s.MapZoomLevel())

	center := s.Center()
	assert.InDelta(t, 47.9465, center.Latitude, 0.002)
	assert.InDelta(t, 13.7778, center.Longitude, 0.002)
}

func TestCenter_Empty(t *testing.T) {
	assert.Equal(t, areas.Coordinate{}, areas.Center(immutable.Of[*areas.Area]()))
}

func TestCenter_SinglePoint(t *testing.T) {
	list := immutable.Of(areas.NewArea(immutable.Of(areas.Draggable(10, 20)), "p", false, true))
	center := areas.Center(list)
	assert.InDelta(t, 10, center.Latitude, 1e-9)
	assert.InDelta(t, 20, center.Longitude, 1e-9)
}

func TestNewUpdater_RegistersOnce(t *testing.T) {
	c := lens.New(lens.WithTieBreak(reconstruct.TieBreakError))
	_, err := areas.NewUpdater(c)
	require.NoError(t, err)
	_, err = areas.NewUpdater(c)
	require.NoError(t, err)

	next, err := lens.With(c, areas.InitialState(), "s.Title", "again")
	require.NoError(t, err)
	assert.Equal(t, "again", next.Title())
}

func TestUpdate_SetTitle(t *testing.T) {
	u := newUpdater(t)
	s := areas.InitialState()

	next, err := u.Update(s, areas.Message{Kind: areas.KindSetTitle, Title: "Farm"})
	require.NoError(t, err)

	assert.Equal(t, "Farm", next.Title())
	assert.Equal(t, "", s.Title())
	assert.Same(t, s.Areas().At(0), next.Areas().At(0))
	assert.Same(t, s.Areas().At(1), next.Areas().At(1))
}

func TestUpdate_MoveLocation(t *testing.T) {
	u := newUpdater(t)
	s := areas.InitialState()

	s1, err := u.Update(s, areas.Message{Kind: areas.KindBeginMoveLocation, Area: 1, Coordinate: 2})
	require.NoError(t, err)
	assert.True(t, s1.Areas().At(1).Coordinates().At(2).IsDragging)
	assert.False(t, s1.Areas().At(1).Coordinates().At(1).IsDragging)
	assert.Same(t, s.Areas().At(0), s1.Areas().At(0))

	s2, err := u.Update(s1, areas.Message{Kind: areas.KindMoveLocation, Area: 1, Coordinate: 2, Location: loc(48, 13.78)})
	require.NoError(t, err)
	moved := s2.Areas().At(1).Coordinates().At(2)
	assert.Equal(t, areas.Coordinate{Latitude: 48, Longitude: 13.78}, moved.Coordinate)
	assert.True(t, moved.IsDragging)

	s3, err := u.Update(s2, areas.Message{Kind: areas.KindEndMoveLocation, Area: 1, Coordinate: 2})
	require.NoError(t, err)
	assert.False(t, s3.Areas().At(1).Coordinates().At(2).IsDragging)
	assert.Equal(t, "Galler", s3.Areas().At(1).Note())

	assert.Equal(t, 47.948885, s.Areas().At(1).Coordinates().At(2).Coordinate.Latitude)
}

func TestUpdate_InsertAndRemoveLocation(t *testing.T) {
	u := newUpdater(t)
	s := areas.InitialState()

	inserted, err := u.Update(s, areas.Message{Kind: areas.KindInsertLocation, Area: 0, Coordinate: 1, Location: loc(1, 2)})
	require.NoError(t, err)
	coords := inserted.Areas().At(0).Coordinates()
	require.Equal(t, 6, coords.Len())
	assert.Equal(t, areas.Coordinate{Latitude: 1, Longitude: 2}, coords.At(1).Coordinate)
	assert.Equal(t, 5, s.Areas().At(0).Coordinates().Len())

	removed, err := u.Update(inserted, areas.Message{Kind: areas.KindRemoveLocation, Area: 0, Coordinate: 1})
	require.NoError(t, err)
	assert.Equal(t, s.Areas().At(0).Coordinates().Slice(), removed.Areas().At(0).Coordinates().Slice())

	_, err = u.Update(s, areas.Message{Kind: areas.KindRemoveLocation, Area: 0, Coordinate: 9})
	assert.ErrorIs(t, err, opticserr.ErrIndexOutOfRange)
}

func TestUpdate_SelectArea(t *testing.T) {
	u := newUpdater(t)
	s := areas.InitialState()

	next, err := u.Update(s, areas.Message{Kind: areas.KindSelectArea, Area: 1})
	require.NoError(t, err)
	assert.False(t, next.Areas().At(0).IsSelected())
	assert.True(t, next.Areas().At(1).IsSelected())
	assert.Same(t, s.Areas().At(0), next.Areas().At(0))
}

func TestUpdate_AddArea(t *testing.T) {
	u := newUpdater(t)
	s := areas.InitialState()

	next, err := u.Update(s, areas.Message{Kind: areas.KindAddArea, Title: "Wiese"})
	require.NoError(t, err)

	require.Equal(t, 3, next.Areas().Len())
	added := next.Areas().At(2)
	assert.Equal(t, "Wiese", added.Note())
	assert.True(t, added.IsSelected())
	assert.False(t, added.IsDefined())
	assert.True(t, added.Coordinates().IsEmpty())
	for i := range 2 {
		assert.False(t, next.Areas().At(i).IsSelected())
		assert.True(t, next.Areas().At(i).IsDefined())
	}
	assert.Equal(t, 2, s.Areas().Len())
}

func TestUpdate_DefineArea(t *testing.T) {
	u := newUpdater(t)
	s := areas.InitialState()

	begun, err := u.Update(s, areas.Message{Kind: areas.KindBeginDefineArea, Area: 0})
	require.NoError(t, err)
	assert.False(t, begun.Areas().At(0).IsDefined())
	assert.True(t, begun.Areas().At(1).IsDefined())

	ended, err := u.Update(begun, areas.Message{Kind: areas.KindEndDefineArea, Area: 0})
	require.NoError(t, err)
	assert.True(t, ended.Areas().At(0).IsDefined())
}

func TestUpdate_AreaTitleAndMapView(t *testing.T) {
	u := newUpdater(t)
	s := areas.InitialState()

	renamed, err := u.Update(s, areas.Message{Kind: areas.KindUpdateAreaTitle, Area: 0, Title: "Acker"})
	require.NoError(t, err)
	assert.Equal(t, "Acker", renamed.Areas().At(0).Note())

	zoomed, err := u.Update(renamed, areas.Message{Kind: areas.KindChangeMapView, ZoomLevel: 17})
	require.NoError(t, err)
	assert.Equal(t, 17, zoomed.MapZoomLevel())
	assert.Equal(t, s.Center(), zoomed.Center())

	moved, err := u.Update(zoomed, areas.Message{Kind: areas.KindChangeMapView, ZoomLevel: 12, Location: loc(47, 13)})
	require.NoError(t, err)
	assert.Equal(t, 12, moved.MapZoomLevel())
	assert.Equal(t, areas.Coordinate{Latitude: 47, Longitude: 13}, moved.Center())
}

func TestUpdate_Errors(t *testing.T) {
	u := newUpdater(t)
	s := areas.InitialState()

	tests := []struct {
		name string
		msg  areas.Message
		want error
	}{
		{"unknown kind", areas.Message{Kind: "explode"}, opticserr.ErrPathNotSupported},
		{"move without location", areas.Message{Kind: areas.KindMoveLocation}, opticserr.ErrTypeMismatch},
		{"insert without location", areas.Message{Kind: areas.KindInsertLocation}, opticserr.ErrTypeMismatch},
		{"area out of range", areas.Message{Kind: areas.KindUpdateAreaTitle, Area: 7}, opticserr.ErrIndexOutOfRange},
		{"coordinate out of range", areas.Message{Kind: areas.KindBeginMoveLocation, Area: 1, Coordinate: 4}, opticserr.ErrIndexOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := u.Update(s, tt.msg)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReplay_StopsAtFailure(t *testing.T) {
	u := newUpdater(t)
	s := areas.InitialState()

	last, err := u.Replay(s, []areas.Message{
		{Kind: areas.KindSetTitle, Title: "before"},
		{Kind: areas.KindSelectArea, Area: 0},
		{Kind: areas.KindUpdateAreaTitle, Area: 9, Title: "x"},
		{Kind: areas.KindSetTitle, Title: "after"},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "message 2 (update_area_title)")
	assert.Equal(t, "before", last.Title())
	assert.True(t, last.Areas().At(0).IsSelected())
}

const sampleScenario = `
name: rename and drag
messages:
  - kind: set_title
    title: Hof
  - kind: begin_move_location
    area: 0
    coordinate: 3
  - kind: move_location
    area: 0
    coordinate: 3
    location: {lat: 47.9466, lng: 13.7761}
  - kind: end_move_location
    area: 0
    coordinate: 3
  - kind: add_area
    title: Neu
`

func TestScenario_ReplayAndEncode(t *testing.T) {
	sc, err := areas.DecodeScenario(strings.NewReader(sampleScenario))
	require.NoError(t, err)
	require.Len(t, sc.Messages, 5)
	assert.Equal(t, "rename and drag", sc.Name)

	final, err := newUpdater(t).Replay(sc.Start(), sc.Messages)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, areas.EncodeState(&buf, final))
	out := buf.String()
	assert.Contains(t, out, "title: Hof")
	assert.Contains(t, out, "note: Neu")
	assert.Contains(t, out, "lat: 47.9466")

	decoded, err := areas.DecodeScenario(strings.NewReader("initial:\n" + indent(out) + "messages: []\n"))
	require.NoError(t, err)
	require.NotNil(t, decoded.Initial)
	assert.Equal(t, final.Title(), decoded.Initial.Title())
	assert.Equal(t, final.Areas().Len(), decoded.Initial.Areas().Len())
	assert.Equal(t, final.Areas().At(0).Coordinates().Slice(), decoded.Initial.Areas().At(0).Coordinates().Slice())
}

func TestScenario_RejectsUnknownKeys(t *testing.T) {
	_, err := areas.DecodeScenario(strings.NewReader("messages:\n  - kind: set_title\n    colour: red\n"))
	assert.Error(t, err)
}

func TestScenario_EmptyStartsFromInitialState(t *testing.T) {
	sc, err := areas.DecodeScenario(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 2, sc.Start().Areas().Len())
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n") + "\n"
}

func TestSelectArea_ExactlyOneSelected(t *testing.T) {
	u := newUpdater(t)
	rapid.Check(t, func(t *rapid.T) {
		s := areas.InitialState()
		for _, m := range rapid.SliceOfN(rapid.IntRange(0, 1), 1, 6).Draw(t, "selections") {
			var err error
			s, err = u.Update(s, areas.Message{Kind: areas.KindSelectArea, Area: m})
			if err != nil {
				t.Fatal(err)
			}
		}
		selected := 0
		for _, a := range s.Areas().All() {
			if a.IsSelected() {
				selected++
			}
		}
		if selected != 1 {
			t.Fatalf("selected %d areas", selected)
		}
	})
}
