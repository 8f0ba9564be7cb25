package main

type HistoryEntry struct {
	Move      Move    `json:"move"`
	Gained    int     `json:"gained"`
	Spawn     *Spawn  `json:"spawn,omitempty"`
	ElapsedMs float64 `json:"elapsed_ms"`
	IsAi      bool    `json:"is_ai"`
	Depth     int     `json:"depth"`
}

type MoveHistory struct {
	entries []HistoryEntry
}

func (h *MoveHistory) Clear() {
	h.entries = nil
}

func (h *MoveHistory) Push(entry HistoryEntry) {
	h.entries = append(h.entries, entry)
}

func (h MoveHistory) Size() int {
	return len(h.entries)
}

func (h MoveHistory) All() []HistoryEntry {
	return append([]HistoryEntry(nil), h.entries...)
}

// MaxDepth is the deepest completed search across AI moves.
func (h MoveHistory) MaxDepth() int {
	best := 0
	for _, entry := range h.entries {
		if entry.Depth > best {
			best = entry.Depth
		}
	}
	return best
}
