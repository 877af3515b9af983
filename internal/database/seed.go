package database

import (
	"time"

	"github.com/hypeshelf/backend/internal/recommendations"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type seedEntry struct {
	id        string
	title     string
	genres    []string
	blurb     string
	link      string
	posterURL string
	staffPick bool
	tmdbID    int64
}

var seedEntries = []seedEntry{
	{
		id:        "seed-shawshank-redemption",
		title:     "The Shawshank Redemption",
		genres:    []string{"Drama"},
		blurb:     "Two imprisoned men bond over a number of years, finding solace and eventual redemption through acts of common decency.",
		link:      "https://www.imdb.com/title/tt0111161/",
		posterURL: "https://image.tmdb.org/t/p/w500/9cqNxx0GxF0bflZmeSMuL5tnGzr.jpg",
		staffPick: true,
		tmdbID:    278,
	},
	{
		id:        "seed-inception",
		title:     "Inception",
		genres:    []string{"Action", "Sci-Fi", "Thriller"},
		blurb:     "A thief who steals corporate secrets through the use of dream-sharing technology is given the inverse task of planting an idea.",
		link:      "https://www.imdb.com/title/tt1375666/",
		posterURL: "https://image.tmdb.org/t/p/w500/ljsZTbVsrQSqZgWeep2B1QiDKuh.jpg",
		tmdbID:    27205,
	},
	{
		id:        "seed-everything-everywhere",
		title:     "Everything Everywhere All at Once",
		genres:    []string{"Action", "Comedy", "Sci-Fi"},
		blurb:     "A Chinese-American woman gets swept up in an insane adventure, where she alone can save the world by exploring other universes.",
		link:      "https://www.imdb.com/title/tt6710474/",
		posterURL: "https://image.tmdb.org/t/p/w500/w3LxiVYdWWRvEVdn5RYq6jIqkb1.jpg",
		tmdbID:    545611,
	},
	{
		id:        "seed-parasite",
		title:     "Parasite",
		genres:    []string{"Drama", "Thriller"},
		blurb:     "Greed and class discrimination threaten the newly formed symbiotic relationship between the wealthy Park family and the destitute Kim clan.",
		link:      "https://www.imdb.com/title/tt6751668/",
		posterURL: "https://image.tmdb.org/t/p/w500/7IiTTgloJzvGI1TAYymCfbfl3vT.jpg",
		tmdbID:    496243,
	},
	{
		id:        "seed-across-the-spider-verse",
		title:     "Spider-Man: Across the Spider-Verse",
		genres:    []string{"Animation", "Action", "Sci-Fi"},
		blurb:     "Miles Morales catapults across the Multiverse, where he encounters a team of Spider-People charged with protecting its very existence.",
		link:      "https://www.imdb.com/title/tt9362722/",
		posterURL: "https://image.tmdb.org/t/p/w500/8Vt6mWEReuy4Of61Lnj5Xj704m8.jpg",
		tmdbID:    569094,
	},
	{
		id:        "seed-grand-budapest-hotel",
		title:     "The Grand Budapest Hotel",
		genres:    []string{"Comedy", "Drama"},
		blurb:     "A writer encounters the owner of an aging high-class hotel, who tells him of his early years serving as a lobby boy during the hotel's glory days.",
		link:      "https://www.imdb.com/title/tt2278388/",
		posterURL: "https://image.tmdb.org/t/p/w500/eWdyYQreja6JGCzqHWXpWHDrrPo.jpg",
		tmdbID:    120467,
	},
}

// SeedSampleData inserts the sample board owned by the system user. The seed
// runs only against an empty recommendations table, so repeated startups with
// seeding enabled stay idempotent.
func SeedSampleData(db *gorm.DB, logger *zap.Logger) error {
	var count int64
	if err := db.Model(&recommendations.Recommendation{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC().Unix()
	records := make([]recommendations.Recommendation, 0, len(seedEntries))
	for index, entry := range seedEntries {
		tmdbID := entry.tmdbID
		records = append(records, recommendations.Recommendation{
			ID:           entry.id,
			Title:        entry.title,
			Genres:       entry.genres,
			Link:         entry.link,
			Blurb:        entry.blurb,
			PosterURL:    entry.posterURL,
			TMDBID:       &tmdbID,
			OwnerSubject: recommendations.SystemSubject,
			IsStaffPick:  entry.staffPick,
			// stagger timestamps so the listing order is stable
			CreatedAtSeconds: now + int64(index),
			UpdatedAtSeconds: now + int64(index),
		})
	}

	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&records).Error; err != nil {
		return err
	}
	if logger != nil {
		logger.Info("sample data seeded", zap.Int("count", len(records)))
	}
	return nil
}
