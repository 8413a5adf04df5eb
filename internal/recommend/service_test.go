package recommend

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarahcodeswell/sarahs-library-sub002/internal/catalog"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/embedding"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/llm"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/routing"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/vector"
)

type fixedRouter struct{ decision routing.Decision }

func (f fixedRouter) Route(context.Context, string) routing.Decision { return f.decision }

type fakeCompleter struct {
	text string
	err  error
	reqs []llm.Request
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Completion{Text: f.text}, nil
}

var testBooks = []catalog.Book{
	{Title: "The Overstory", Author: "Richard Powers", Genre: "Literary Fiction", Themes: []string{"nature"}, Favorite: true},
	{Title: "Pachinko", Author: "Min Jin Lee", Genre: "Historical Fiction", Themes: []string{"family"}},
	{Title: "Braiding Sweetgrass", Author: "Robin Wall Kimmerer", Genre: "Nonfiction", Themes: []string{"nature"}},
}

func fixedClock() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }

func TestRecommend_CatalogPath(t *testing.T) {
	completer := &fakeCompleter{text: "Title: The Overstory\nAuthor: Richard Powers\nWhy: trees\n\nTitle: Braiding Sweetgrass\nAuthor: Robin Wall Kimmerer\nWhy: plants\n\n**Title:** Pachinko\nAuthor: Min Jin Lee\nWhy: family"}
	svc := NewService(nil, fixedRouter{routing.Decision{Path: routing.PathCatalog, Reason: routing.ReasonCatalogKeyword}},
		completer, testBooks, WithClock(fixedClock))

	res, err := svc.Recommend(context.Background(), Request{
		Query: "nature books from your collection",
		ReadingQueue: []catalog.ReadingQueueItem{
			{BookTitle: "Pachinko", BookAuthor: "Min Jin Lee", Status: catalog.StatusFinished, Rating: 5},
		},
		Owned: []catalog.OwnedBook{{Title: "Beloved", Author: "Toni Morrison"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"The Overstory", "Braiding Sweetgrass"}, res.ShortlistTitles())
	assert.Equal(t, []string{"The Overstory", "Braiding Sweetgrass", "Pachinko"}, res.Titles)
	assert.True(t, strings.HasPrefix(res.User, "Sarah's curated library"))
	assert.Contains(t, res.User, "Beloved by Toni Morrison")
	assert.True(t, strings.HasSuffix(res.User, "User request: nature books from your collection"))
	assert.Len(t, res.System, 4)

	require.Len(t, completer.reqs, 1)
	assert.Equal(t, res.User, completer.reqs[0].User)
}

func TestRecommend_WorldPathSkipsShortlist(t *testing.T) {
	svc := NewService(nil, fixedRouter{routing.Decision{Path: routing.PathWorld}}, &fakeCompleter{}, testBooks)

	res, err := svc.Preview(context.Background(), Request{Query: "bestsellers"})
	require.NoError(t, err)
	assert.Nil(t, res.Shortlist)
	assert.Equal(t, "User request: bestsellers", res.User)
}

func TestRecommend_EmptyQuery(t *testing.T) {
	completer := &fakeCompleter{}
	svc := NewService(nil, fixedRouter{routing.Decision{Path: routing.PathWorld}}, completer, testBooks)

	_, err := svc.Recommend(context.Background(), Request{Query: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Empty(t, completer.reqs)
}

func TestRecommend_CompletionFailureKeepsPrompt(t *testing.T) {
	upstream := errors.New("529 overloaded")
	svc := NewService(nil, fixedRouter{routing.Decision{Path: routing.PathHybrid}}, &fakeCompleter{err: upstream}, testBooks)

	res, err := svc.Recommend(context.Background(), Request{Query: "family saga"})
	assert.ErrorIs(t, err, ErrCompletionFailed)
	assert.ErrorIs(t, err, upstream)
	require.NotNil(t, res)
	assert.NotEmpty(t, res.System)
	assert.Contains(t, res.User, "User request: family saga")
	assert.Nil(t, res.Completion)
}

func TestRecommend_NoCompleter(t *testing.T) {
	svc := NewService(nil, fixedRouter{routing.Decision{Path: routing.PathWorld}}, nil, nil)
	res, err := svc.Recommend(context.Background(), Request{Query: "anything"})
	assert.ErrorIs(t, err, ErrNoCompleter)
	assert.NotNil(t, res)
}

func TestRecommend_RealRouterDegradesToWorld(t *testing.T) {
	embedder := embedding.NewMockClient(8).WithError(errors.New("embeddings down"))
	router := routing.NewRouter(nil, nil, embedder, vector.NewMemoryIndex(8), routing.RouterConfig{})
	svc := NewService(nil, router, nil, testBooks)

	res, err := svc.Preview(context.Background(), Request{Query: "emotional family drama"})
	require.NoError(t, err)
	assert.Equal(t, routing.PathWorld, res.Decision.Path)
	assert.Equal(t, routing.ReasonProbeFailed, res.Decision.Reason)
	assert.NotEmpty(t, res.System)
}

func TestParseTitles(t *testing.T) {
	reply := strings.Join([]string{
		"Title: The Overstory",
		"Author: Richard Powers",
		"1. Title: \"Pachinko\"",
		"**Title:** Braiding Sweetgrass",
		"Subtitle: not a title",
		"title: lower case",
		"Title:   ",
		"  - Title: *Beloved*",
	}, "\n")

	assert.Equal(t, []string{"The Overstory", "Pachinko", "Braiding Sweetgrass", "lower case", "Beloved"}, ParseTitles(reply))
	assert.Empty(t, ParseTitles("no titles here"))
}
