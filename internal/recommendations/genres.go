package recommendations

// initialGenres seeds the genre vocabulary. The vocabulary is extensible:
// records may carry tags outside this list (new tags arrive with catalog
// data) without any schema change.
var initialGenres = []string{
	"Action",
	"Comedy",
	"Drama",
	"Horror",
	"Sci-Fi",
	"Romance",
	"Thriller",
	"Documentary",
	"Animation",
	"Fantasy",
	"Mystery",
	"Other",
}

// Vocabulary returns a copy of the seeded genre list.
func Vocabulary() []string {
	return append([]string(nil), initialGenres...)
}
