package recommendations

// FilterByGenres returns the subsequence of records whose genre set satisfies
// the requested predicate. OR keeps records sharing any requested genre, AND
// requires every requested genre. An empty genre list disables filtering.
// O(records × |genres|); genre sets are small enough that no index is needed.
func FilterByGenres(records []Recommendation, genres []string, mode FilterMode) []Recommendation {
	if len(genres) == 0 {
		return records
	}

	matched := make([]Recommendation, 0, len(records))
	for _, record := range records {
		if matchesGenres(record, genres, mode) {
			matched = append(matched, record)
		}
	}
	return matched
}

func matchesGenres(record Recommendation, genres []string, mode FilterMode) bool {
	if mode == FilterModeAND {
		for _, genre := range genres {
			if !hasGenre(record, genre) {
				return false
			}
		}
		return true
	}
	for _, genre := range genres {
		if hasGenre(record, genre) {
			return true
		}
	}
	return false
}

func hasGenre(record Recommendation, genre string) bool {
	for _, candidate := range record.Genres {
		if candidate == genre {
			return true
		}
	}
	return false
}
