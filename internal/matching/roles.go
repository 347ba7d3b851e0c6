package matching

import (
	"github.com/saturnino-fabrica-de-software/facematch/internal/domain"
)

// DefaultMinOverlap is the IoU a manual box needs to snap to a detected box.
const DefaultMinOverlap = 0.10

const (
	// DefaultMaxDocumentOverlap is the IoU with the candidate at which a
	// detection is treated as the live face again rather than a portrait.
	DefaultMaxDocumentOverlap = 0.20
	// DefaultMaxDocumentAreaRatio caps the document portrait area relative
	// to the candidate face.
	DefaultMaxDocumentAreaRatio = 0.60
)

// Overrides are caller-selected boxes that take precedence over the heuristic.
type Overrides struct {
	Document  *domain.FaceBox
	Candidate *domain.FaceBox
}

func (o Overrides) Empty() bool {
	return o.Document == nil && o.Candidate == nil
}

// Resolution is the outcome of role resolution. Err is set when the
// pipeline cannot go on to embedding; Assignment may still be partially
// filled (e.g. candidate only).
type Resolution struct {
	Assignment domain.RoleAssignment
	Warnings   []string
	Err        *domain.StageError
}

// RoleStrategy decides which detected face is the document portrait and
// which is the live candidate.
type RoleStrategy interface {
	ResolveSingle(boxes []domain.FaceBox, overrides Overrides) Resolution
	ResolveTwoStep(documentBoxes, selfieBoxes []domain.FaceBox) Resolution
}

// AreaStrategy assigns roles by box area: in a single frame the smallest
// face is the document portrait and the largest is the candidate; across
// two images the largest face of each is used. Equal areas prefer the
// higher score, then the earlier detector index.
//
// In single-image mode a heuristic document pick must overlap the candidate
// by less than MaxDocumentOverlap and be at most MaxDocumentAreaRatio of its
// area; a duplicate detection of the live face otherwise compares the face
// with itself. Zero disables the respective check. Manual document boxes
// are not filtered.
//
// This is a heuristic. Tilted documents or bystanders can fool it.
type AreaStrategy struct {
	MinOverlap           float64
	MaxDocumentOverlap   float64
	MaxDocumentAreaRatio float64
}

func NewAreaStrategy() *AreaStrategy {
	return &AreaStrategy{
		MinOverlap:           DefaultMinOverlap,
		MaxDocumentOverlap:   DefaultMaxDocumentOverlap,
		MaxDocumentAreaRatio: DefaultMaxDocumentAreaRatio,
	}
}

type indexedBox struct {
	box   domain.FaceBox
	index int
}

// preferred reports whether a ranks before b.
func preferred(a, b indexedBox, largest bool) bool {
	areaA, areaB := a.box.Area(), b.box.Area()
	if areaA != areaB {
		if largest {
			return areaA > areaB
		}
		return areaA < areaB
	}
	if a.box.Score != b.box.Score {
		return a.box.Score > b.box.Score
	}
	return a.index < b.index
}

func pick(boxes []indexedBox, largest bool) (indexedBox, bool) {
	if len(boxes) == 0 {
		return indexedBox{}, false
	}
	best := boxes[0]
	for _, b := range boxes[1:] {
		if preferred(b, best, largest) {
			best = b
		}
	}
	return best, true
}

func index(boxes []domain.FaceBox) []indexedBox {
	out := make([]indexedBox, len(boxes))
	for i, b := range boxes {
		out[i] = indexedBox{box: b, index: i}
	}
	return out
}

// Largest returns the largest box using the same tie-break as role resolution.
func Largest(boxes []domain.FaceBox) (domain.FaceBox, bool) {
	b, ok := pick(index(boxes), true)
	return b.box, ok
}

// Smallest returns the smallest box using the same tie-break as role resolution.
func Smallest(boxes []domain.FaceBox) (domain.FaceBox, bool) {
	b, ok := pick(index(boxes), false)
	return b.box, ok
}

// SortByArea returns boxes ordered by ascending area (ties: higher score,
// then detector order).
func SortByArea(boxes []domain.FaceBox) []domain.FaceBox {
	remaining := index(boxes)
	out := make([]domain.FaceBox, 0, len(boxes))
	for len(remaining) > 0 {
		best, _ := pick(remaining, false)
		out = append(out, best.box)
		remaining = without(remaining, best.index)
	}
	return out
}

func without(boxes []indexedBox, idx int) []indexedBox {
	out := make([]indexedBox, 0, len(boxes))
	for _, b := range boxes {
		if b.index != idx {
			out = append(out, b)
		}
	}
	return out
}

// ResolveSingle resolves both roles inside one frame.
func (s *AreaStrategy) ResolveSingle(boxes []domain.FaceBox, overrides Overrides) Resolution {
	var res Resolution

	if len(boxes) == 0 && overrides.Empty() {
		res.Err = domain.NewStageError(domain.StageResolveRoles, domain.ReasonNoFacesDetected,
			"no faces detected in image", nil)
		return res
	}

	remaining := index(boxes)

	if overrides.Document != nil {
		box, idx, snapped := s.snap(*overrides.Document, remaining)
		res.Assignment.DocumentBox = &box
		if snapped {
			remaining = without(remaining, idx)
		} else {
			res.Warnings = append(res.Warnings, domain.WarningDocumentBoxNotDetected)
		}
	}

	if overrides.Candidate != nil {
		box, idx, snapped := s.snap(*overrides.Candidate, remaining)
		res.Assignment.CandidateBox = &box
		if snapped {
			remaining = without(remaining, idx)
		} else {
			res.Warnings = append(res.Warnings, domain.WarningCandidateBoxNotDetected)
		}
	}

	// candidate first so that a lone remaining face is treated as the live one
	if res.Assignment.CandidateBox == nil {
		if best, ok := pick(remaining, true); ok {
			box := best.box
			res.Assignment.CandidateBox = &box
			remaining = without(remaining, best.index)
		}
	}

	if res.Assignment.DocumentBox == nil {
		eligible := remaining
		if res.Assignment.CandidateBox != nil {
			eligible = s.documentCandidates(remaining, *res.Assignment.CandidateBox)
		}
		if best, ok := pick(eligible, false); ok {
			box := best.box
			res.Assignment.DocumentBox = &box
		} else if len(remaining) > 0 {
			res.Err = domain.NewStageError(domain.StageResolveRoles, domain.ReasonInsufficientFaces,
				"no other face is clearly apart from and smaller than the candidate face", nil)
			return res
		}
	}

	if res.Assignment.DocumentBox == nil || res.Assignment.CandidateBox == nil {
		res.Err = domain.NewStageError(domain.StageResolveRoles, domain.ReasonInsufficientFaces,
			"single-image mode needs a document portrait and a candidate face", nil)
	}

	return res
}

// documentCandidates drops detections that overlap the candidate or are
// too large to be a document portrait.
func (s *AreaStrategy) documentCandidates(boxes []indexedBox, candidate domain.FaceBox) []indexedBox {
	maxArea := s.MaxDocumentAreaRatio * float64(candidate.Area())

	out := make([]indexedBox, 0, len(boxes))
	for _, b := range boxes {
		if s.MaxDocumentOverlap > 0 && IoU(b.box, candidate) >= s.MaxDocumentOverlap {
			continue
		}
		if s.MaxDocumentAreaRatio > 0 && float64(b.box.Area()) > maxArea {
			continue
		}
		out = append(out, b)
	}
	return out
}

// ResolveTwoStep picks the largest face of each image.
func (s *AreaStrategy) ResolveTwoStep(documentBoxes, selfieBoxes []domain.FaceBox) Resolution {
	var res Resolution

	if len(documentBoxes) > 1 {
		res.Warnings = append(res.Warnings, domain.WarningMultipleFacesInDocument)
	}
	if len(selfieBoxes) > 1 {
		res.Warnings = append(res.Warnings, domain.WarningMultipleFacesInSelfie)
	}

	if doc, ok := Largest(documentBoxes); ok {
		res.Assignment.DocumentBox = &doc
	}
	if selfie, ok := Largest(selfieBoxes); ok {
		res.Assignment.CandidateBox = &selfie
	}

	switch {
	case res.Assignment.DocumentBox == nil && res.Assignment.CandidateBox == nil:
		res.Err = domain.NewStageError(domain.StageResolveRoles, domain.ReasonNoFacesDetected,
			"no faces detected in document or selfie image", nil)
	case res.Assignment.DocumentBox == nil:
		res.Err = domain.NewStageError(domain.StageResolveRoles, domain.ReasonNoFacesDetected,
			"no face detected in document image", nil)
	case res.Assignment.CandidateBox == nil:
		res.Err = domain.NewStageError(domain.StageResolveRoles, domain.ReasonNoFacesDetected,
			"no face detected in selfie image", nil)
	}

	return res
}

// snap replaces a manual box with the detected box overlapping it the most,
// provided the overlap reaches MinOverlap. Otherwise the manual box is kept.
func (s *AreaStrategy) snap(manual domain.FaceBox, detected []indexedBox) (domain.FaceBox, int, bool) {
	bestIoU := 0.0
	best := -1
	for i, d := range detected {
		if iou := IoU(manual, d.box); iou > bestIoU {
			bestIoU = iou
			best = i
		}
	}

	if best >= 0 && bestIoU >= s.MinOverlap {
		return detected[best].box, detected[best].index, true
	}
	return manual, -1, false
}

// IoU returns the intersection over union of two boxes.
func IoU(a, b domain.FaceBox) float64 {
	inter := a.Rect().Intersect(b.Rect())
	if inter.Empty() {
		return 0
	}

	intersection := float64(inter.Dx() * inter.Dy())
	union := float64(a.Area()+b.Area()) - intersection
	if union <= 0 {
		return 0
	}

	return intersection / union
}

var _ RoleStrategy = (*AreaStrategy)(nil)
