package services

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flic_feed/models"
)

func post(id int64, category int64) models.Post {
	return models.NewPost(models.NumericPostID(id), models.NewCategory(category))
}

func parsePosts(t *testing.T, raw string) []models.Post {
	t.Helper()
	var posts []models.Post
	require.NoError(t, json.Unmarshal([]byte(raw), &posts))
	return posts
}

func TestAggregate_DedupIdempotence(t *testing.T) {
	viewed := []models.Post{post(1, 1), post(2, 2)}
	liked := []models.Post{post(3, 3)}
	rated := []models.Post{post(2, 5)}

	base := Aggregate(viewed, liked, nil, rated)
	dup := Aggregate(append(append([]models.Post{}, viewed...), viewed...), append(liked, liked...), nil, append(rated, rated...))

	assert.Equal(t, base.IDs(), dup.IDs())
	assert.Equal(t, base.Posts(), dup.Posts())
}

func TestAggregate_LastWriteWins(t *testing.T) {
	set := Aggregate([]models.Post{post(1, 5)}, nil, nil, []models.Post{post(1, 9)})

	require.Equal(t, 1, set.Len())
	p, ok := set.Get(models.NumericPostID(1))
	require.True(t, ok)
	assert.True(t, p.Category.Matches(9))
}

func TestAggregate_ReplacesWholeRecord(t *testing.T) {
	viewed := parsePosts(t, `[{"id":1,"title":"old","category":{"id":5}}]`)
	rated := parsePosts(t, `[{"id":1,"rating":4}]`)

	set := Aggregate(viewed, nil, nil, rated)
	p, _ := set.Get(models.NumericPostID(1))

	_, hasTitle := p.Field("title")
	assert.False(t, hasTitle)
	assert.Nil(t, p.Category)
	rating, ok := p.Field("rating")
	require.True(t, ok)
	assert.JSONEq(t, `4`, string(rating))
}

func TestAggregate_KeepsFirstPosition(t *testing.T) {
	set := Aggregate(
		[]models.Post{post(1, 1)},
		[]models.Post{post(2, 2)},
		[]models.Post{post(3, 3)},
		[]models.Post{post(1, 7), post(4, 4)},
	)
	assert.Equal(t, []models.PostID{
		models.NumericPostID(1), models.NumericPostID(2), models.NumericPostID(3), models.NumericPostID(4),
	}, set.IDs())
}

func TestAggregate_NumericAndStringIDsDiffer(t *testing.T) {
	viewed := parsePosts(t, `[{"id":1},{"id":"1"}]`)
	set := Aggregate(viewed, nil, nil, nil)
	assert.Equal(t, 2, set.Len())
}

func TestAggregate_IntegralFloatIDIsSamePost(t *testing.T) {
	viewed := parsePosts(t, `[{"id":1,"category":{"id":5}}]`)
	rated := parsePosts(t, `[{"id":1.0,"category":{"id":9}}]`)

	set := Aggregate(viewed, nil, nil, rated)
	require.Equal(t, 1, set.Len())
	p, ok := set.Get(models.NumericPostID(1))
	require.True(t, ok)
	assert.True(t, p.Category.Matches(9))
}

func TestAggregate_DoesNotMutateInputs(t *testing.T) {
	viewed := []models.Post{post(1, 5)}
	rated := []models.Post{post(1, 9)}
	Aggregate(viewed, nil, nil, rated)

	assert.True(t, viewed[0].Category.Matches(5))
	assert.True(t, rated[0].Category.Matches(9))
}

func TestAggregateStreams_MissingCategoriesAreEmpty(t *testing.T) {
	set := AggregateStreams(map[models.EngagementCategory][]models.Post{
		models.EngagementRated: {post(2, 2)},
		models.EngagementViewed: {post(1, 1)},
	})
	assert.Equal(t, []models.PostID{models.NumericPostID(1), models.NumericPostID(2)}, set.IDs())
}

func TestFilterByCategory(t *testing.T) {
	candidates := Aggregate(
		parsePosts(t, `[{"id":1,"category":{"id":1}},{"id":2},{"id":3,"category":null},{"id":4,"category":"x"}]`),
		[]models.Post{post(5, 1), post(6, 0)},
		nil, nil,
	)

	t.Run("pass-through", func(t *testing.T) {
		assert.Equal(t, candidates.Posts(), FilterByCategory(candidates, nil))
	})

	t.Run("matching", func(t *testing.T) {
		id := int64(1)
		got := FilterByCategory(candidates, &id)
		require.Len(t, got, 2)
		assert.Equal(t, models.NumericPostID(1), got[0].ID)
		assert.Equal(t, models.NumericPostID(5), got[1].ID)
	})

	t.Run("zero is a real filter value", func(t *testing.T) {
		id := int64(0)
		got := FilterByCategory(candidates, &id)
		require.Len(t, got, 1)
		assert.Equal(t, models.NumericPostID(6), got[0].ID)
	})

	t.Run("totality", func(t *testing.T) {
		for _, v := range []int64{-1, 2, 42, 1 << 40} {
			id := v
			assert.Empty(t, FilterByCategory(candidates, &id))
		}
	})

	t.Run("empty set", func(t *testing.T) {
		id := int64(1)
		assert.Empty(t, FilterByCategory(models.NewCandidateSet(), &id))
		assert.Empty(t, FilterByCategory(models.NewCandidateSet(), nil))
	})
}
