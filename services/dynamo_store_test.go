package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"pulse_server/config"
	"pulse_server/models"
)

// fakeDynamo replays scripted GetItem results and UpdateItem errors and
// records every write and query it receives
type fakeDynamo struct {
	mu sync.Mutex

	items      []map[string]types.AttributeValue // successive GetItem results, the last repeats
	getErr     error
	gets       int
	updateErrs []error // consumed per UpdateItem call
	updated    map[string]types.AttributeValue
	updates    []*dynamodb.UpdateItemInput
	pages      [][]map[string]types.AttributeValue
	queries    []*dynamodb.QueryInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if len(f.items) == 0 {
		return &dynamodb.GetItemOutput{}, nil
	}
	item := f.items[min(f.gets, len(f.items)-1)]
	f.gets++
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeDynamo) PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, in)
	if len(f.updateErrs) > 0 {
		err := f.updateErrs[0]
		f.updateErrs = f.updateErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &dynamodb.UpdateItemOutput{Attributes: f.updated}, nil
}

func (f *fakeDynamo) DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, in)
	n := len(f.queries) - 1
	if n >= len(f.pages) {
		return &dynamodb.QueryOutput{}, nil
	}
	out := &dynamodb.QueryOutput{Items: f.pages[n], Count: int32(len(f.pages[n]))}
	if n < len(f.pages)-1 {
		out.LastEvaluatedKey = map[string]types.AttributeValue{"contentId": sAV(fmt.Sprintf("page-%d", n))}
	}
	return out, nil
}

func (f *fakeDynamo) Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return &dynamodb.ScanOutput{}, nil
}

func newDynamoStoreForTest(fake *fakeDynamo) *DynamoStore {
	store := NewDynamoStore(&DynamoService{Client: fake}, config.StoreConfig{
		ContentTable: "content",
		StoriesTable: "stories",
	})
	store.now = func() time.Time { return t0 }
	return store
}

func marshalItem(t *testing.T, v any) map[string]types.AttributeValue {
	t.Helper()
	av, err := attributevalue.MarshalMap(v)
	require.NoError(t, err)
	return av
}

func contentWith(likes, dislikes []string) models.ContentItem {
	return models.ContentItem{
		ContentID:  "p1",
		AuthorID:   "author",
		Visibility: models.VisibilityPublic,
		Likes:      likes,
		Dislikes:   dislikes,
		LikeCount:  len(likes),
		CreatedAt:  t0.Add(-time.Hour),
	}
}

func TestDynamoToggleReaction_Expressions(t *testing.T) {
	cases := []struct {
		name      string
		kind      string
		current   models.ContentItem
		update    string
		condition string
		added     bool
	}{
		{
			name:      "like",
			kind:      models.ActionLike,
			current:   contentWith(nil, nil),
			update:    "SET likeCount = if_not_exists(likeCount, :zero) + :one ADD likes :a",
			condition: "attribute_exists(contentId) AND NOT contains(likes, :actor) AND NOT contains(dislikes, :actor)",
			added:     true,
		},
		{
			name:      "unlike",
			kind:      models.ActionLike,
			current:   contentWith([]string{"alice"}, nil),
			update:    "SET likeCount = likeCount - :one DELETE likes :a",
			condition: "attribute_exists(contentId) AND contains(likes, :actor) AND NOT contains(dislikes, :actor)",
		},
		{
			name:      "like clears dislike",
			kind:      models.ActionLike,
			current:   contentWith(nil, []string{"alice"}),
			update:    "SET likeCount = if_not_exists(likeCount, :zero) + :one ADD likes :a DELETE dislikes :a",
			condition: "attribute_exists(contentId) AND NOT contains(likes, :actor) AND contains(dislikes, :actor)",
			added:     true,
		},
		{
			name:      "dislike clears like",
			kind:      models.ActionDislike,
			current:   contentWith([]string{"alice"}, nil),
			update:    "SET likeCount = likeCount - :one ADD dislikes :a DELETE likes :a",
			condition: "attribute_exists(contentId) AND NOT contains(dislikes, :actor) AND contains(likes, :actor)",
			added:     true,
		},
		{
			name:      "save",
			kind:      models.ActionSave,
			current:   contentWith(nil, nil),
			update:    "SET saveCount = if_not_exists(saveCount, :zero) + :one ADD saves :a",
			condition: "attribute_exists(contentId) AND NOT contains(saves, :actor)",
			added:     true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeDynamo{
				items:   []map[string]types.AttributeValue{marshalItem(t, tc.current)},
				updated: marshalItem(t, tc.current),
			}
			_, added, err := newDynamoStoreForTest(fake).ToggleReaction(context.Background(), "p1", "alice", tc.kind)
			require.NoError(t, err)
			require.Equal(t, tc.added, added)

			require.Len(t, fake.updates, 1)
			in := fake.updates[0]
			require.Equal(t, "content", aws.ToString(in.TableName))
			require.Equal(t, tc.update, aws.ToString(in.UpdateExpression))
			require.Equal(t, tc.condition, aws.ToString(in.ConditionExpression))
			require.Equal(t, &types.AttributeValueMemberSS{Value: []string{"alice"}}, in.ExpressionAttributeValues[":a"])
			require.Equal(t, &types.AttributeValueMemberS{Value: "alice"}, in.ExpressionAttributeValues[":actor"])
		})
	}
}

func TestDynamoToggleReaction_RetriesOnConditionFailure(t *testing.T) {
	// a concurrent like from the same actor lands between read and write
	fake := &fakeDynamo{
		items: []map[string]types.AttributeValue{
			marshalItem(t, contentWith(nil, nil)),
			marshalItem(t, contentWith([]string{"alice"}, nil)),
		},
		updateErrs: []error{&types.ConditionalCheckFailedException{Message: aws.String("raced")}},
		updated:    marshalItem(t, contentWith(nil, nil)),
	}
	_, added, err := newDynamoStoreForTest(fake).ToggleReaction(context.Background(), "p1", "alice", models.ActionLike)
	require.NoError(t, err)
	require.False(t, added)

	require.Equal(t, 2, fake.gets)
	require.Len(t, fake.updates, 2)
	require.Contains(t, aws.ToString(fake.updates[0].UpdateExpression), "ADD likes :a")
	require.Contains(t, aws.ToString(fake.updates[1].UpdateExpression), "DELETE likes :a")
}

func TestDynamoToggleReaction_GivesUpUnderContention(t *testing.T) {
	errs := make([]error, maxConditionalRetries)
	for i := range errs {
		errs[i] = &types.ConditionalCheckFailedException{}
	}
	fake := &fakeDynamo{
		items:      []map[string]types.AttributeValue{marshalItem(t, contentWith(nil, nil))},
		updateErrs: errs,
	}
	_, _, err := newDynamoStoreForTest(fake).ToggleReaction(context.Background(), "p1", "alice", models.ActionLike)
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.Len(t, fake.updates, maxConditionalRetries)
}

func TestDynamoToggleReaction_RejectsUnknownKind(t *testing.T) {
	fake := &fakeDynamo{}
	_, _, err := newDynamoStoreForTest(fake).ToggleReaction(context.Background(), "p1", "alice", "poke")
	require.True(t, IsPolicy(err, CodeInvalidAction))
	require.Zero(t, fake.gets)
	require.Empty(t, fake.updates)
}

func TestDynamoGetContent_NotFoundAndExpiry(t *testing.T) {
	ctx := context.Background()

	_, err := newDynamoStoreForTest(&fakeDynamo{}).GetContent(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	expired := contentWith(nil, nil)
	at := t0.Add(-time.Minute)
	expired.ExpiresAt = &at
	_, err = newDynamoStoreForTest(&fakeDynamo{items: []map[string]types.AttributeValue{marshalItem(t, expired)}}).GetContent(ctx, "p1")
	require.ErrorIs(t, err, ErrNotFound)

	live := contentWith(nil, nil)
	later := t0.Add(time.Minute)
	live.ExpiresAt = &later
	item, err := newDynamoStoreForTest(&fakeDynamo{items: []map[string]types.AttributeValue{marshalItem(t, live)}}).GetContent(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, "p1", item.ContentID)

	_, err = newDynamoStoreForTest(&fakeDynamo{getErr: errors.New("throttled")}).GetContent(ctx, "p1")
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.NotErrorIs(t, err, ErrNotFound)
}

func storyWith(oneTime bool, viewers ...string) models.Story {
	return models.Story{
		StoryID:     "s1",
		AuthorID:    "author",
		Visibility:  models.VisibilityPublic,
		OneTimeView: oneTime,
		Viewers:     viewers,
		ViewCount:   len(viewers),
		CreatedAt:   t0.Add(-time.Hour),
		ExpiresAt:   t0.Add(23 * time.Hour),
	}
}

func TestDynamoGetStory_ExpiredIsNotFound(t *testing.T) {
	expired := storyWith(false)
	expired.ExpiresAt = t0
	_, err := newDynamoStoreForTest(&fakeDynamo{items: []map[string]types.AttributeValue{marshalItem(t, expired)}}).GetStory(context.Background(), "s1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDynamoAddStoryViewer_OneTimeGate(t *testing.T) {
	ctx := context.Background()

	fake := &fakeDynamo{
		items:   []map[string]types.AttributeValue{marshalItem(t, storyWith(true))},
		updated: marshalItem(t, storyWith(true, "bob")),
	}
	updated, added, err := newDynamoStoreForTest(fake).AddStoryViewer(ctx, "s1", "bob")
	require.NoError(t, err)
	require.True(t, added)
	require.Equal(t, []string{"bob"}, updated.Viewers)
	require.Len(t, fake.updates, 1)
	require.Equal(t, "ADD viewers :v, viewCount :one", aws.ToString(fake.updates[0].UpdateExpression))
	require.Equal(t, "attribute_exists(storyId) AND NOT contains(viewers, :actor) AND attribute_not_exists(viewers)", aws.ToString(fake.updates[0].ConditionExpression))

	// another viewer wins the race; the re-read sees the story consumed
	fake = &fakeDynamo{
		items: []map[string]types.AttributeValue{
			marshalItem(t, storyWith(true)),
			marshalItem(t, storyWith(true, "carol")),
		},
		updateErrs: []error{&types.ConditionalCheckFailedException{}},
	}
	_, _, err = newDynamoStoreForTest(fake).AddStoryViewer(ctx, "s1", "bob")
	require.True(t, IsPolicy(err, CodeOneTimeViewConsumed))
	require.Len(t, fake.updates, 1)

	// a repeat view by the first viewer writes nothing
	fake = &fakeDynamo{items: []map[string]types.AttributeValue{marshalItem(t, storyWith(true, "bob"))}}
	_, added, err = newDynamoStoreForTest(fake).AddStoryViewer(ctx, "s1", "bob")
	require.NoError(t, err)
	require.False(t, added)
	require.Empty(t, fake.updates)
}

func TestDynamoAddStoryViewer_RegularStoryHasNoGate(t *testing.T) {
	fake := &fakeDynamo{
		items:   []map[string]types.AttributeValue{marshalItem(t, storyWith(false, "carol"))},
		updated: marshalItem(t, storyWith(false, "carol", "bob")),
	}
	_, added, err := newDynamoStoreForTest(fake).AddStoryViewer(context.Background(), "s1", "bob")
	require.NoError(t, err)
	require.True(t, added)
	require.Equal(t, "attribute_exists(storyId) AND NOT contains(viewers, :actor)", aws.ToString(fake.updates[0].ConditionExpression))
}

func TestDynamoListContentByAuthors_PagesUntilLimit(t *testing.T) {
	page := func(from int) []map[string]types.AttributeValue {
		var items []map[string]types.AttributeValue
		for i := from; i < from+3; i++ {
			item := contentWith(nil, nil)
			item.ContentID = fmt.Sprintf("p%d", i)
			item.CreatedAt = t0.Add(-time.Duration(i) * time.Minute)
			items = append(items, marshalItem(t, item))
		}
		return items
	}
	fake := &fakeDynamo{pages: [][]map[string]types.AttributeValue{page(0), page(3), page(6)}}

	items, err := newDynamoStoreForTest(fake).ListContentByAuthors(context.Background(), ContentQuery{
		AuthorIDs:    []string{"author"},
		Limit:        4,
		ServableOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, items, 4)
	require.Equal(t, "p0", items[0].ContentID)
	require.Equal(t, "p3", items[3].ContentID)

	require.Len(t, fake.queries, 2, "stops paging once the limit is met")
	in := fake.queries[0]
	require.Equal(t, models.ContentAuthorIndex, aws.ToString(in.IndexName))
	require.Equal(t, servableFilter, aws.ToString(in.FilterExpression))
	require.Equal(t, &types.AttributeValueMemberBOOL{Value: false}, in.ExpressionAttributeValues[":false"])
	require.False(t, aws.ToBool(in.ScanIndexForward))
	require.Equal(t, int32(4), aws.ToInt32(in.Limit))
}
