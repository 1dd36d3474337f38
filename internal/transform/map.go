package transform

const (
	delBefore = 1 << iota
	delAfter
	delAcross
	delSide
)

// Mappable maps positions from an old document to a newer one.
type Mappable interface {
	Map(pos, assoc int) int
	MapResult(pos, assoc int) MapResult
}

// MapResult is a mapped position plus deletion information.
type MapResult struct {
	Pos  int
	info int
}

// Deleted reports whether the content on the assoc side of the position was
// deleted.
func (r MapResult) Deleted() bool       { return r.info&delSide != 0 }
func (r MapResult) DeletedBefore() bool { return r.info&(delBefore|delAcross) != 0 }
func (r MapResult) DeletedAfter() bool  { return r.info&(delAfter|delAcross) != 0 }
func (r MapResult) DeletedAcross() bool { return r.info&delAcross != 0 }

// StepMap records the ranges a step replaced as (start, oldSize, newSize)
// triples in ascending order.
type StepMap struct {
	ranges   []int
	inverted bool
}

var emptyStepMap = &StepMap{}

func NewStepMap(ranges ...int) *StepMap {
	if len(ranges) == 0 {
		return emptyStepMap
	}
	return &StepMap{ranges: ranges}
}

// EmptyStepMap maps every position to itself.
func EmptyStepMap() *StepMap { return emptyStepMap }

func (m *StepMap) Map(pos, assoc int) int {
	return m.mapPos(pos, assoc).Pos
}

func (m *StepMap) MapResult(pos, assoc int) MapResult {
	return m.mapPos(pos, assoc)
}

func (m *StepMap) mapPos(pos, assoc int) MapResult {
	diff := 0
	oldIndex, newIndex := 1, 2
	if m.inverted {
		oldIndex, newIndex = 2, 1
	}
	for i := 0; i < len(m.ranges); i += 3 {
		start := m.ranges[i]
		if m.inverted {
			start -= diff
		}
		if start > pos {
			break
		}
		oldSize, newSize := m.ranges[i+oldIndex], m.ranges[i+newIndex]
		end := start + oldSize
		if pos <= end {
			side := assoc
			if oldSize != 0 {
				switch pos {
				case start:
					side = -1
				case end:
					side = 1
				}
			}
			result := start + diff
			if side >= 0 {
				result += newSize
			}
			var info int
			switch pos {
			case start:
				info = delAfter
			case end:
				info = delBefore
			default:
				info = delAcross
			}
			if (assoc < 0 && pos != start) || (assoc >= 0 && pos != end) {
				info |= delSide
			}
			return MapResult{Pos: result, info: info}
		}
		diff += newSize - oldSize
	}
	return MapResult{Pos: pos + diff}
}

// ForEach calls fn with the old and new extent of every changed range.
func (m *StepMap) ForEach(fn func(oldStart, oldEnd, newStart, newEnd int)) {
	oldIndex, newIndex := 1, 2
	if m.inverted {
		oldIndex, newIndex = 2, 1
	}
	diff := 0
	for i := 0; i < len(m.ranges); i += 3 {
		start := m.ranges[i]
		oldStart := start
		if m.inverted {
			oldStart = start - diff
		}
		newStart := start
		if !m.inverted {
			newStart = start + diff
		}
		oldSize, newSize := m.ranges[i+oldIndex], m.ranges[i+newIndex]
		fn(oldStart, oldStart+oldSize, newStart, newStart+newSize)
		diff += newSize - oldSize
	}
}

// Invert returns a map from the new document back to the old one.
func (m *StepMap) Invert() *StepMap {
	return &StepMap{ranges: m.ranges, inverted: !m.inverted}
}

// Mapping chains step maps.
type Mapping struct {
	maps []*StepMap
}

func NewMapping(maps ...*StepMap) *Mapping {
	return &Mapping{maps: append([]*StepMap(nil), maps...)}
}

func (m *Mapping) Maps() []*StepMap { return m.maps }

func (m *Mapping) AppendMap(sm *StepMap) { m.maps = append(m.maps, sm) }

func (m *Mapping) AppendMapping(other *Mapping) {
	m.maps = append(m.maps, other.maps...)
}

// Slice returns the mapping of maps [from, len).
func (m *Mapping) Slice(from int) *Mapping {
	if from >= len(m.maps) {
		return &Mapping{}
	}
	return &Mapping{maps: append([]*StepMap(nil), m.maps[from:]...)}
}

func (m *Mapping) Map(pos, assoc int) int {
	for _, sm := range m.maps {
		pos = sm.Map(pos, assoc)
	}
	return pos
}

func (m *Mapping) MapResult(pos, assoc int) MapResult {
	info := 0
	for _, sm := range m.maps {
		r := sm.MapResult(pos, assoc)
		if r.info != 0 {
			info |= r.info
		}
		pos = r.Pos
	}
	return MapResult{Pos: pos, info: info}
}
