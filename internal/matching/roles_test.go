package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facematch/internal/domain"
)

func box(x, y, w, h int, score float64) domain.FaceBox {
	return domain.FaceBox{X: x, Y: y, W: w, H: h, Score: score}
}

func TestAreaStrategy_ResolveSingle(t *testing.T) {
	s := NewAreaStrategy()

	tests := []struct {
		name          string
		boxes         []domain.FaceBox
		wantDocument  *domain.FaceBox
		wantCandidate *domain.FaceBox
		wantReason    domain.Reason
	}{
		{
			name:       "no boxes",
			boxes:      nil,
			wantReason: domain.ReasonNoFacesDetected,
		},
		{
			name:          "single box is candidate only",
			boxes:         []domain.FaceBox{box(0, 0, 50, 50, 0.9)},
			wantCandidate: ptr(box(0, 0, 50, 50, 0.9)),
			wantReason:    domain.ReasonInsufficientFaces,
		},
		{
			name:          "area 100 is document, area 500 is candidate",
			boxes:         []domain.FaceBox{box(0, 0, 10, 10, 0.9), box(50, 50, 20, 25, 0.9)},
			wantDocument:  ptr(box(0, 0, 10, 10, 0.9)),
			wantCandidate: ptr(box(50, 50, 20, 25, 0.9)),
		},
		{
			name:          "order does not matter",
			boxes:         []domain.FaceBox{box(50, 50, 20, 25, 0.9), box(0, 0, 10, 10, 0.9)},
			wantDocument:  ptr(box(0, 0, 10, 10, 0.9)),
			wantCandidate: ptr(box(50, 50, 20, 25, 0.9)),
		},
		{
			name: "three faces use extremes",
			boxes: []domain.FaceBox{
				box(0, 0, 30, 30, 0.8),
				box(100, 0, 80, 80, 0.9),
				box(200, 0, 20, 20, 0.7),
			},
			wantDocument:  ptr(box(200, 0, 20, 20, 0.7)),
			wantCandidate: ptr(box(100, 0, 80, 80, 0.9)),
		},
		{
			name: "equal areas prefer higher score",
			boxes: []domain.FaceBox{
				box(0, 0, 20, 20, 0.6),
				box(100, 0, 20, 20, 0.95),
				box(200, 0, 60, 60, 0.9),
			},
			wantDocument:  ptr(box(100, 0, 20, 20, 0.95)),
			wantCandidate: ptr(box(200, 0, 60, 60, 0.9)),
		},
		{
			name: "equal area and score prefer detector order",
			boxes: []domain.FaceBox{
				box(0, 0, 20, 20, 0.9),
				box(100, 0, 20, 20, 0.9),
				box(200, 0, 60, 60, 0.9),
			},
			wantDocument:  ptr(box(0, 0, 20, 20, 0.9)),
			wantCandidate: ptr(box(200, 0, 60, 60, 0.9)),
		},
		{
			name:          "duplicate detection of the live face is not a portrait",
			boxes:         []domain.FaceBox{box(50, 50, 100, 100, 0.95), box(55, 55, 90, 90, 0.6)},
			wantCandidate: ptr(box(50, 50, 100, 100, 0.95)),
			wantReason:    domain.ReasonInsufficientFaces,
		},
		{
			name:          "second face of similar size is not a portrait",
			boxes:         []domain.FaceBox{box(0, 0, 100, 100, 0.95), box(300, 0, 80, 80, 0.9)},
			wantCandidate: ptr(box(0, 0, 100, 100, 0.95)),
			wantReason:    domain.ReasonInsufficientFaces,
		},
		{
			name: "duplicate is skipped in favour of the real portrait",
			boxes: []domain.FaceBox{
				box(50, 50, 100, 100, 0.95),
				box(52, 52, 96, 96, 0.5),
				box(300, 200, 30, 40, 0.8),
			},
			wantDocument:  ptr(box(300, 200, 30, 40, 0.8)),
			wantCandidate: ptr(box(50, 50, 100, 100, 0.95)),
		},
		{
			name:          "portrait just under the area limit",
			boxes:         []domain.FaceBox{box(0, 0, 100, 100, 0.95), box(300, 0, 59, 100, 0.9)},
			wantDocument:  ptr(box(300, 0, 59, 100, 0.9)),
			wantCandidate: ptr(box(0, 0, 100, 100, 0.95)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.ResolveSingle(tt.boxes, Overrides{})

			assert.Equal(t, tt.wantDocument, res.Assignment.DocumentBox)
			assert.Equal(t, tt.wantCandidate, res.Assignment.CandidateBox)
			if tt.wantReason == "" {
				assert.Nil(t, res.Err)
			} else {
				require.NotNil(t, res.Err)
				assert.Equal(t, tt.wantReason, res.Err.Reason)
				assert.Equal(t, domain.StageResolveRoles, res.Err.Stage)
			}
		})
	}
}

func TestAreaStrategy_ResolveSingle_Overrides(t *testing.T) {
	s := NewAreaStrategy()
	detected := []domain.FaceBox{
		box(10, 10, 30, 30, 0.8),    // small, card portrait
		box(200, 50, 120, 120, 0.9), // large, live face
		box(400, 300, 40, 40, 0.7),  // bystander
	}

	t.Run("document override snaps to detected box", func(t *testing.T) {
		manual := box(398, 302, 42, 38, 0)
		res := s.ResolveSingle(detected, Overrides{Document: &manual})

		require.Nil(t, res.Err)
		assert.Equal(t, detected[2], *res.Assignment.DocumentBox)
		assert.Equal(t, detected[1], *res.Assignment.CandidateBox)
		assert.Empty(t, res.Warnings)
	})

	t.Run("candidate override takes the largest away from heuristic", func(t *testing.T) {
		manual := box(205, 55, 110, 110, 0)
		res := s.ResolveSingle(detected, Overrides{Candidate: &manual})

		require.Nil(t, res.Err)
		assert.Equal(t, detected[1], *res.Assignment.CandidateBox)
		assert.Equal(t, detected[0], *res.Assignment.DocumentBox)
	})

	t.Run("override with no overlap is used as given", func(t *testing.T) {
		manual := box(600, 10, 50, 50, 0)
		res := s.ResolveSingle(detected, Overrides{Document: &manual})

		require.Nil(t, res.Err)
		assert.Equal(t, manual, *res.Assignment.DocumentBox)
		assert.Equal(t, detected[1], *res.Assignment.CandidateBox)
		assert.Contains(t, res.Warnings, domain.WarningDocumentBoxNotDetected)
	})

	t.Run("both overrides without detections", func(t *testing.T) {
		doc := box(0, 0, 40, 40, 0)
		cand := box(100, 100, 80, 80, 0)
		res := s.ResolveSingle(nil, Overrides{Document: &doc, Candidate: &cand})

		require.Nil(t, res.Err)
		assert.Equal(t, doc, *res.Assignment.DocumentBox)
		assert.Equal(t, cand, *res.Assignment.CandidateBox)
		assert.Len(t, res.Warnings, 2)
	})

	t.Run("overrides never share a detected box", func(t *testing.T) {
		single := []domain.FaceBox{box(0, 0, 100, 100, 0.9)}
		doc := box(0, 0, 100, 100, 0)
		cand := box(5, 5, 90, 90, 0)
		res := s.ResolveSingle(single, Overrides{Document: &doc, Candidate: &cand})

		require.Nil(t, res.Err)
		assert.Equal(t, single[0], *res.Assignment.DocumentBox)
		assert.Equal(t, cand, *res.Assignment.CandidateBox)
	})

	t.Run("document override with a single detection", func(t *testing.T) {
		single := []domain.FaceBox{box(200, 50, 120, 120, 0.9)}
		manual := box(10, 10, 30, 30, 0)
		res := s.ResolveSingle(single, Overrides{Document: &manual})

		require.Nil(t, res.Err)
		assert.Equal(t, manual, *res.Assignment.DocumentBox)
		assert.Equal(t, single[0], *res.Assignment.CandidateBox)
	})
}

func TestAreaStrategy_ResolveSingle_DocumentFilter(t *testing.T) {
	duplicate := []domain.FaceBox{box(50, 50, 100, 100, 0.95), box(55, 55, 90, 90, 0.6)}

	t.Run("filter disabled keeps the old pick", func(t *testing.T) {
		s := &AreaStrategy{MinOverlap: DefaultMinOverlap}
		res := s.ResolveSingle(duplicate, Overrides{})

		require.Nil(t, res.Err)
		assert.Equal(t, duplicate[1], *res.Assignment.DocumentBox)
	})

	t.Run("manual document box bypasses the filter", func(t *testing.T) {
		manual := box(55, 55, 90, 90, 0)
		res := NewAreaStrategy().ResolveSingle(duplicate, Overrides{Document: &manual})

		require.Nil(t, res.Err)
		assert.Equal(t, duplicate[1], *res.Assignment.DocumentBox)
		assert.Equal(t, duplicate[0], *res.Assignment.CandidateBox)
	})

	t.Run("filter applies against a manual candidate", func(t *testing.T) {
		boxes := []domain.FaceBox{box(0, 0, 40, 40, 0.9), box(200, 0, 100, 100, 0.9)}
		manual := box(0, 0, 40, 40, 0)
		res := NewAreaStrategy().ResolveSingle(boxes, Overrides{Candidate: &manual})

		require.NotNil(t, res.Err)
		assert.Equal(t, domain.ReasonInsufficientFaces, res.Err.Reason)
		assert.Equal(t, boxes[0], *res.Assignment.CandidateBox)
		assert.Nil(t, res.Assignment.DocumentBox)
	})
}

func TestAreaStrategy_ResolveTwoStep(t *testing.T) {
	s := NewAreaStrategy()

	tests := []struct {
		name          string
		document      []domain.FaceBox
		selfie        []domain.FaceBox
		wantDocument  *domain.FaceBox
		wantCandidate *domain.FaceBox
		wantWarnings  []string
		wantReason    domain.Reason
	}{
		{
			name:          "one face each",
			document:      []domain.FaceBox{box(10, 10, 40, 50, 0.9)},
			selfie:        []domain.FaceBox{box(100, 80, 200, 220, 0.95)},
			wantDocument:  ptr(box(10, 10, 40, 50, 0.9)),
			wantCandidate: ptr(box(100, 80, 200, 220, 0.95)),
		},
		{
			name:          "ghost portrait and bystander",
			document:      []domain.FaceBox{box(300, 20, 20, 25, 0.6), box(10, 10, 40, 50, 0.9)},
			selfie:        []domain.FaceBox{box(500, 10, 30, 30, 0.7), box(100, 80, 200, 220, 0.95)},
			wantDocument:  ptr(box(10, 10, 40, 50, 0.9)),
			wantCandidate: ptr(box(100, 80, 200, 220, 0.95)),
			wantWarnings:  []string{domain.WarningMultipleFacesInDocument, domain.WarningMultipleFacesInSelfie},
		},
		{
			name:          "no document face",
			document:      nil,
			selfie:        []domain.FaceBox{box(100, 80, 200, 220, 0.95)},
			wantCandidate: ptr(box(100, 80, 200, 220, 0.95)),
			wantReason:    domain.ReasonNoFacesDetected,
		},
		{
			name:         "no selfie face",
			document:     []domain.FaceBox{box(10, 10, 40, 50, 0.9)},
			selfie:       nil,
			wantDocument: ptr(box(10, 10, 40, 50, 0.9)),
			wantReason:   domain.ReasonNoFacesDetected,
		},
		{
			name:       "no faces at all",
			wantReason: domain.ReasonNoFacesDetected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.ResolveTwoStep(tt.document, tt.selfie)

			assert.Equal(t, tt.wantDocument, res.Assignment.DocumentBox)
			assert.Equal(t, tt.wantCandidate, res.Assignment.CandidateBox)
			assert.Equal(t, tt.wantWarnings, res.Warnings)
			if tt.wantReason == "" {
				assert.Nil(t, res.Err)
			} else {
				require.NotNil(t, res.Err)
				assert.Equal(t, tt.wantReason, res.Err.Reason)
			}
		})
	}
}

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b domain.FaceBox
		want float64
	}{
		{"identical", box(0, 0, 10, 10, 0), box(0, 0, 10, 10, 0), 1},
		{"disjoint", box(0, 0, 10, 10, 0), box(20, 20, 10, 10, 0), 0},
		{"half overlap", box(0, 0, 10, 10, 0), box(5, 0, 10, 10, 0), 50.0 / 150.0},
		{"contained", box(0, 0, 10, 10, 0), box(0, 0, 5, 5, 0), 0.25},
		{"degenerate", box(0, 0, 0, 10, 0), box(0, 0, 10, 10, 0), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, IoU(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.want, IoU(tt.b, tt.a), 1e-9)
		})
	}
}

func TestSortByArea(t *testing.T) {
	boxes := []domain.FaceBox{
		box(0, 0, 30, 30, 0.5),
		box(0, 0, 10, 10, 0.5),
		box(0, 0, 20, 20, 0.4),
		box(1, 1, 20, 20, 0.8),
	}

	got := SortByArea(boxes)

	require.Len(t, got, 4)
	assert.Equal(t, 100, got[0].Area())
	assert.Equal(t, 0.8, got[1].Score)
	assert.Equal(t, 0.4, got[2].Score)
	assert.Equal(t, 900, got[3].Area())

	largest, ok := Largest(boxes)
	require.True(t, ok)
	assert.Equal(t, 900, largest.Area())

	smallest, ok := Smallest(boxes)
	require.True(t, ok)
	assert.Equal(t, 100, smallest.Area())

	_, ok = Largest(nil)
	assert.False(t, ok)
}

func ptr(b domain.FaceBox) *domain.FaceBox {
	return &b
}
