package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"pulse_server/config"
	"pulse_server/logging"
	"pulse_server/models"
)

// maxConditionalRetries bounds optimistic read-check-write loops
const maxConditionalRetries = 5

// authorQueryConcurrency bounds parallel per-author index queries
const authorQueryConcurrency = 8

// DynamoStore is the production Store. Set membership and counters are
// changed with single conditional UpdateItem calls so concurrent actions
// on the same item serialize at DynamoDB. Content and stories carry an
// expiresAtTTL attribute for DynamoDB's own TTL deletion.
type DynamoStore struct {
	Dynamo *DynamoService
	Tables config.StoreConfig

	now func() time.Time
}

func NewDynamoStore(dynamo *DynamoService, tables config.StoreConfig) *DynamoStore {
	return &DynamoStore{Dynamo: dynamo, Tables: tables, now: time.Now}
}

func sAV(s string) types.AttributeValue  { return &types.AttributeValueMemberS{Value: s} }
func nAV(n int) types.AttributeValue     { return &types.AttributeValueMemberN{Value: strconv.Itoa(n)} }
func ssAV(s string) types.AttributeValue { return &types.AttributeValueMemberSS{Value: []string{s}} }
func boolAV(b bool) types.AttributeValue { return &types.AttributeValueMemberBOOL{Value: b} }

func floatAV(f float64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatFloat(f, 'f', -1, 64)}
}

func timeAV(t time.Time) types.AttributeValue {
	av, err := attributevalue.Marshal(t.UTC())
	if err != nil {
		return sAV(t.UTC().Format(time.RFC3339Nano))
	}
	return av
}

func contentKey(contentID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"contentId": sAV(contentID)}
}

// ---------------------------------------------------------------- content

func (s *DynamoStore) GetContent(ctx context.Context, contentID string) (*models.ContentItem, error) {
	var item models.ContentItem
	if err := s.Dynamo.GetItem(ctx, s.Tables.ContentTable, contentKey(contentID), &item); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound("content", contentID)
		}
		return nil, err
	}
	// TTL deletion is lazy; expired items are treated as gone immediately
	if item.Expired(s.now()) {
		return nil, notFound("content", contentID)
	}
	return &item, nil
}

func (s *DynamoStore) PutContent(ctx context.Context, item *models.ContentItem) error {
	item.Scope = models.ContentScope
	item.SyncCounts()
	item.BuildSearchText()
	if item.ExpiresAt != nil {
		item.ExpiresAtTTL = item.ExpiresAt.Unix()
	}
	return s.Dynamo.PutItem(ctx, s.Tables.ContentTable, item)
}

func (s *DynamoStore) DeleteContent(ctx context.Context, contentID string) error {
	return s.Dynamo.DeleteItem(ctx, s.Tables.ContentTable, contentKey(contentID), "", nil)
}

func (s *DynamoStore) ListContentByAuthors(ctx context.Context, q ContentQuery) ([]models.ContentItem, error) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
		merged   []models.ContentItem
		sem      = make(chan struct{}, authorQueryConcurrency)
	)

	for _, authorID := range q.AuthorIDs {
		wg.Add(1)
		sem <- struct{}{}
		go func(authorID string) {
			defer wg.Done()
			defer func() { <-sem }()

			items, err := s.queryAuthorContent(ctx, authorID, q)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			merged = append(merged, items...)
		}(authorID)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	now := s.now()
	live := merged[:0]
	for _, item := range merged {
		if !item.Expired(now) {
			live = append(live, item)
		}
	}
	sortNewestFirst(live)
	if q.Limit > 0 && len(live) > q.Limit {
		live = live[:q.Limit]
	}
	return live, nil
}

// servableFilter drops archived and hidden items; QueryAll keeps paging past
// filtered-out items until the limit is met
const servableFilter = "(attribute_not_exists(archived) OR archived = :false) AND (attribute_not_exists(hidden) OR hidden = :false)"

func (s *DynamoStore) queryAuthorContent(ctx context.Context, authorID string, q ContentQuery) ([]models.ContentItem, error) {
	keyCond := "authorId = :a"
	values := map[string]types.AttributeValue{":a": sAV(authorID)}
	if !q.Since.IsZero() {
		keyCond += " AND createdAt >= :since"
		values[":since"] = timeAV(q.Since)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.Tables.ContentTable),
		IndexName:                 aws.String(models.ContentAuthorIndex),
		KeyConditionExpression:    aws.String(keyCond),
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(false),
	}
	if q.ServableOnly {
		input.FilterExpression = aws.String(servableFilter)
		values[":false"] = boolAV(false)
	}
	if q.Limit > 0 {
		input.Limit = aws.Int32(int32(q.Limit))
	}

	var items []models.ContentItem
	if err := s.Dynamo.QueryAll(ctx, input, q.Limit, &items); err != nil {
		return nil, fmt.Errorf("failed to list content of author %s: %w", authorID, err)
	}
	return items, nil
}

func (s *DynamoStore) TopLikedContent(ctx context.Context) (*models.ContentItem, error) {
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.Tables.ContentTable),
		IndexName:                 aws.String(models.ContentTopLikedIndex),
		KeyConditionExpression:    aws.String("#scope = :scope"),
		ExpressionAttributeNames:  map[string]string{"#scope": "scope"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":scope": sAV(models.ContentScope)},
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(1),
	}

	var items []models.ContentItem
	if err := s.Dynamo.QueryAll(ctx, input, 1, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, notFound("content", "top-liked")
	}
	return &items[0], nil
}

// reactionSets maps a reaction to its set attribute, its persisted count and
// the set it excludes
var reactionSets = map[string]struct {
	set, count, opposite, oppositeCount string
}{
	models.ActionLike:    {set: "likes", count: "likeCount", opposite: "dislikes"},
	models.ActionDislike: {set: "dislikes", opposite: "likes", oppositeCount: "likeCount"},
	models.ActionSave:    {set: "saves", count: "saveCount"},
}

func (s *DynamoStore) ToggleReaction(ctx context.Context, contentID, actorID, kind string) (*models.ContentItem, bool, error) {
	reaction, ok := reactionSets[kind]
	if !ok {
		return nil, false, policyError(CodeInvalidAction, "unsupported reaction %q", kind)
	}

	for attempt := 0; attempt < maxConditionalRetries; attempt++ {
		current, err := s.GetContent(ctx, contentID)
		if err != nil {
			return nil, false, err
		}

		inSet := hasReaction(current, reaction.set, actorID)
		inOpposite := reaction.opposite != "" && hasReaction(current, reaction.opposite, actorID)

		// The condition pins the membership we just observed; a concurrent
		// toggle makes it fail and we re-read.
		conds := []string{"attribute_exists(contentId)", membership(reaction.set, inSet)}
		if reaction.opposite != "" {
			conds = append(conds, membership(reaction.opposite, inOpposite))
		}

		var sets []string
		var update string
		values := map[string]types.AttributeValue{":a": ssAV(actorID), ":actor": sAV(actorID)}

		if inSet {
			update = "DELETE " + reaction.set + " :a"
			if reaction.count != "" {
				sets = append(sets, reaction.count+" = "+reaction.count+" - :one")
			}
		} else {
			update = "ADD " + reaction.set + " :a"
			if reaction.count != "" {
				sets = append(sets, reaction.count+" = if_not_exists("+reaction.count+", :zero) + :one")
				values[":zero"] = nAV(0)
			}
			if inOpposite {
				update += " DELETE " + reaction.opposite + " :a"
				if reaction.oppositeCount != "" {
					sets = append(sets, reaction.oppositeCount+" = "+reaction.oppositeCount+" - :one")
				}
			}
		}
		if len(sets) > 0 {
			update = "SET " + strings.Join(sets, ", ") + " " + update
			values[":one"] = nAV(1)
		}

		var updated models.ContentItem
		err = s.Dynamo.UpdateItem(ctx, UpdateRequest{
			Table:     s.Tables.ContentTable,
			Key:       contentKey(contentID),
			Update:    update,
			Condition: strings.Join(conds, " AND "),
			Values:    values,
		}, &updated)
		if errors.Is(err, errConditionFailed) {
			logging.Debug().Str("content_id", contentID).Int("attempt", attempt).Msg("reaction raced, retrying")
			continue
		}
		if err != nil {
			return nil, false, err
		}
		return &updated, !inSet, nil
	}
	return nil, false, fmt.Errorf("toggle %s on %s: %w: too much contention", kind, contentID, ErrStoreUnavailable)
}

func membership(set string, present bool) string {
	if present {
		return "contains(" + set + ", :actor)"
	}
	return "NOT contains(" + set + ", :actor)"
}

func hasReaction(item *models.ContentItem, set, actorID string) bool {
	switch set {
	case "likes":
		return item.LikedBy(actorID)
	case "dislikes":
		return item.DislikedBy(actorID)
	case "saves":
		return item.SavedBy(actorID)
	}
	return false
}

func (s *DynamoStore) IncrementCounter(ctx context.Context, contentID, counter string, delta int) (*models.ContentItem, error) {
	if counter != CounterShares && counter != CounterViews {
		return nil, policyError(CodeInvalidAction, "unsupported counter %q", counter)
	}

	var updated models.ContentItem
	err := s.Dynamo.UpdateItem(ctx, UpdateRequest{
		Table:     s.Tables.ContentTable,
		Key:       contentKey(contentID),
		Update:    "SET #c = if_not_exists(#c, :zero) + :n",
		Condition: "attribute_exists(contentId)",
		Names:     map[string]string{"#c": counter},
		Values:    map[string]types.AttributeValue{":zero": nAV(0), ":n": nAV(delta)},
	}, &updated)
	if errors.Is(err, errConditionFailed) {
		return nil, notFound("content", contentID)
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *DynamoStore) AppendComment(ctx context.Context, contentID string, comment models.Comment) (*models.ContentItem, error) {
	commentAV, err := attributevalue.Marshal(comment)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal comment: %w", err)
	}

	var updated models.ContentItem
	err = s.Dynamo.UpdateItem(ctx, UpdateRequest{
		Table:     s.Tables.ContentTable,
		Key:       contentKey(contentID),
		Update:    "SET comments = list_append(if_not_exists(comments, :empty), :c), commentCount = if_not_exists(commentCount, :zero) + :one",
		Condition: "attribute_exists(contentId)",
		Values: map[string]types.AttributeValue{
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":c":     &types.AttributeValueMemberL{Value: []types.AttributeValue{commentAV}},
			":zero":  nAV(0),
			":one":   nAV(1),
		},
	}, &updated)
	if errors.Is(err, errConditionFailed) {
		return nil, notFound("content", contentID)
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *DynamoStore) UpdateDerived(ctx context.Context, contentID string, d DerivedMetrics) error {
	err := s.Dynamo.UpdateItem(ctx, UpdateRequest{
		Table:     s.Tables.ContentTable,
		Key:       contentKey(contentID),
		Update:    "SET engagementRate = :rate, reach = :reach, lastEngagedAt = :at, algorithmScore = :score",
		Condition: "attribute_exists(contentId)",
		Values: map[string]types.AttributeValue{
			":rate":  floatAV(d.EngagementRate),
			":reach": nAV(d.Reach),
			":at":    timeAV(d.LastEngagedAt),
			":score": floatAV(d.AlgorithmScore),
		},
		ReturnNone: true,
	}, nil)
	if errors.Is(err, errConditionFailed) {
		return notFound("content", contentID)
	}
	return err
}

func (s *DynamoStore) SetContentFlags(ctx context.Context, contentID string, flags ContentFlags) (*models.ContentItem, error) {
	var sets []string
	values := map[string]types.AttributeValue{}
	if flags.Archived != nil {
		sets = append(sets, "archived = :archived")
		values[":archived"] = boolAV(*flags.Archived)
	}
	if flags.Pinned != nil {
		sets = append(sets, "pinned = :pinned")
		values[":pinned"] = boolAV(*flags.Pinned)
	}
	if flags.Hidden != nil {
		sets = append(sets, "hidden = :hidden")
		values[":hidden"] = boolAV(*flags.Hidden)
	}
	if len(sets) == 0 {
		return s.GetContent(ctx, contentID)
	}

	var updated models.ContentItem
	err := s.Dynamo.UpdateItem(ctx, UpdateRequest{
		Table:     s.Tables.ContentTable,
		Key:       contentKey(contentID),
		Update:    "SET " + strings.Join(sets, ", "),
		Condition: "attribute_exists(contentId)",
		Values:    values,
	}, &updated)
	if errors.Is(err, errConditionFailed) {
		return nil, notFound("content", contentID)
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *DynamoStore) SearchContent(ctx context.Context, query string, limit int) ([]models.ContentItem, error) {
	q := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(query), "#"))

	var items []models.ContentItem
	err := s.Dynamo.ScanAll(ctx, &dynamodb.ScanInput{
		TableName:                 aws.String(s.Tables.ContentTable),
		FilterExpression:          aws.String("contains(searchText, :q)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":q": sAV(q)},
	}, &items)
	if err != nil {
		return nil, err
	}

	now := s.now()
	live := items[:0]
	for _, item := range items {
		if !item.Expired(now) {
			live = append(live, item)
		}
	}
	sortNewestFirst(live)
	if limit > 0 && len(live) > limit {
		live = live[:limit]
	}
	return live, nil
}

// DistinctTags aggregates the hashtag attribute across the table
func (s *DynamoStore) DistinctTags(ctx context.Context, prefix string, limit int) ([]string, error) {
	prefix = strings.ToLower(strings.TrimPrefix(prefix, "#"))

	var rows []struct {
		Hashtags []string `dynamodbav:"hashtags"`
	}
	err := s.Dynamo.ScanAll(ctx, &dynamodb.ScanInput{
		TableName:            aws.String(s.Tables.ContentTable),
		ProjectionExpression: aws.String("hashtags"),
		FilterExpression:     aws.String("attribute_exists(hashtags)"),
	}, &rows)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, row := range rows {
		for _, tag := range row.Hashtags {
			tag = strings.ToLower(tag)
			if strings.HasPrefix(tag, prefix) {
				seen[tag] = struct{}{}
			}
		}
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	if limit > 0 && len(tags) > limit {
		tags = tags[:limit]
	}
	return tags, nil
}

// ---------------------------------------------------------------- graph

func edgeKey(fromID, kind, toID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"fromId":  sAV(fromID),
		"edgeKey": sAV(models.EdgeKeyFor(kind, toID)),
	}
}

func (s *DynamoStore) PutEdge(ctx context.Context, edge models.SocialEdge) error {
	edge.EdgeKey = models.EdgeKeyFor(edge.Kind, edge.ToID)
	return s.Dynamo.PutItem(ctx, s.Tables.EdgesTable, edge)
}

func (s *DynamoStore) DeleteEdge(ctx context.Context, fromID, kind, toID string) error {
	return s.Dynamo.DeleteItem(ctx, s.Tables.EdgesTable, edgeKey(fromID, kind, toID), "", nil)
}

func (s *DynamoStore) HasEdge(ctx context.Context, fromID, kind, toID string) (bool, error) {
	var edge models.SocialEdge
	err := s.Dynamo.GetItem(ctx, s.Tables.EdgesTable, edgeKey(fromID, kind, toID), &edge)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *DynamoStore) ListEdges(ctx context.Context, fromID, kind string) ([]string, error) {
	var edges []models.SocialEdge
	err := s.Dynamo.QueryAll(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.Tables.EdgesTable),
		KeyConditionExpression: aws.String("fromId = :f AND begins_with(edgeKey, :k)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":f": sAV(fromID),
			":k": sAV(kind + "#"),
		},
	}, 0, &edges)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.ToID)
	}
	return ids, nil
}

func (s *DynamoStore) ListIncoming(ctx context.Context, toID, kind string) ([]string, error) {
	var edges []models.SocialEdge
	err := s.Dynamo.QueryAll(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.Tables.EdgesTable),
		IndexName:              aws.String(models.EdgeTargetIndex),
		KeyConditionExpression: aws.String("toId = :t AND kind = :k"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": sAV(toID),
			":k": sAV(kind),
		},
	}, 0, &edges)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.FromID)
	}
	return ids, nil
}

// ---------------------------------------------------------------- users

func userKey(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"userId": sAV(userID)}
}

func (s *DynamoStore) GetUser(ctx context.Context, userID string) (*models.UserProfile, error) {
	var user models.UserProfile
	if err := s.Dynamo.GetItem(ctx, s.Tables.UsersTable, userKey(userID), &user); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound("user", userID)
		}
		return nil, err
	}
	return &user, nil
}

func (s *DynamoStore) PutUser(ctx context.Context, user *models.UserProfile) error {
	user.BuildSearchText()
	return s.Dynamo.PutItem(ctx, s.Tables.UsersTable, user)
}

func (s *DynamoStore) SearchUsers(ctx context.Context, query string, limit int) ([]models.UserProfile, error) {
	q := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(query), "@"))

	var users []models.UserProfile
	err := s.Dynamo.ScanAll(ctx, &dynamodb.ScanInput{
		TableName:                 aws.String(s.Tables.UsersTable),
		FilterExpression:          aws.String("contains(searchText, :q)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":q": sAV(q)},
	}, &users)
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (s *DynamoStore) SetPreferences(ctx context.Context, userID string, prefs map[string]bool) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	merged := make(map[string]bool, len(user.Preferences)+len(prefs))
	for k, v := range user.Preferences {
		merged[k] = v
	}
	for k, v := range prefs {
		merged[k] = v
	}
	prefsAV, err := attributevalue.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	err = s.Dynamo.UpdateItem(ctx, UpdateRequest{
		Table:      s.Tables.UsersTable,
		Key:        userKey(userID),
		Update:     "SET notificationPrefs = :p",
		Condition:  "attribute_exists(userId)",
		Values:     map[string]types.AttributeValue{":p": prefsAV},
		ReturnNone: true,
	}, nil)
	if errors.Is(err, errConditionFailed) {
		return notFound("user", userID)
	}
	return err
}

// AdjustFollowerCount never takes the count below zero
func (s *DynamoStore) AdjustFollowerCount(ctx context.Context, userID string, delta int) error {
	cond := "attribute_exists(userId)"
	values := map[string]types.AttributeValue{":zero": nAV(0), ":d": nAV(delta)}
	if delta < 0 {
		cond += " AND followerCount >= :abs"
		values[":abs"] = nAV(-delta)
	}

	err := s.Dynamo.UpdateItem(ctx, UpdateRequest{
		Table:      s.Tables.UsersTable,
		Key:        userKey(userID),
		Update:     "SET followerCount = if_not_exists(followerCount, :zero) + :d",
		Condition:  cond,
		Values:     values,
		ReturnNone: true,
	}, nil)
	if errors.Is(err, errConditionFailed) {
		// Either the user is gone or the count is already at its floor
		_, getErr := s.GetUser(ctx, userID)
		return getErr
	}
	return err
}

// ---------------------------------------------------------------- stories

func storyKey(storyID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"storyId": sAV(storyID)}
}

func (s *DynamoStore) PutStory(ctx context.Context, story *models.Story) error {
	story.ExpiresAtTTL = story.ExpiresAt.Unix()
	return s.Dynamo.PutItem(ctx, s.Tables.StoriesTable, story)
}

func (s *DynamoStore) GetStory(ctx context.Context, storyID string) (*models.Story, error) {
	var story models.Story
	if err := s.Dynamo.GetItem(ctx, s.Tables.StoriesTable, storyKey(storyID), &story); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound("story", storyID)
		}
		return nil, err
	}
	if story.Expired(s.now()) {
		return nil, notFound("story", storyID)
	}
	return &story, nil
}

func (s *DynamoStore) AddStoryViewer(ctx context.Context, storyID, viewerID string) (*models.Story, bool, error) {
	for attempt := 0; attempt < maxConditionalRetries; attempt++ {
		story, err := s.GetStory(ctx, storyID)
		if err != nil {
			return nil, false, err
		}
		if story.ViewedBy(viewerID) {
			return story, false, nil
		}
		if story.OneTimeView && len(story.Viewers) > 0 {
			return nil, false, policyError(CodeOneTimeViewConsumed, "story %s can only be viewed once", storyID)
		}

		cond := "attribute_exists(storyId) AND NOT contains(viewers, :actor)"
		if story.OneTimeView {
			cond += " AND attribute_not_exists(viewers)"
		}

		var updated models.Story
		err = s.Dynamo.UpdateItem(ctx, UpdateRequest{
			Table:     s.Tables.StoriesTable,
			Key:       storyKey(storyID),
			Update:    "ADD viewers :v, viewCount :one",
			Condition: cond,
			Values: map[string]types.AttributeValue{
				":v":     ssAV(viewerID),
				":actor": sAV(viewerID),
				":one":   nAV(1),
			},
		}, &updated)
		if errors.Is(err, errConditionFailed) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		return &updated, true, nil
	}
	return nil, false, fmt.Errorf("view story %s: %w: too much contention", storyID, ErrStoreUnavailable)
}

func (s *DynamoStore) ListStoriesByAuthors(ctx context.Context, authorIDs []string) ([]models.Story, error) {
	now := s.now()
	var out []models.Story
	for _, authorID := range authorIDs {
		var stories []models.Story
		err := s.Dynamo.QueryAll(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.Tables.StoriesTable),
			IndexName:              aws.String(models.StoryAuthorIndex),
			KeyConditionExpression: aws.String("authorId = :a AND expiresAt > :now"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":a":   sAV(authorID),
				":now": timeAV(now),
			},
		}, 0, &stories)
		if err != nil {
			return nil, fmt.Errorf("failed to list stories of author %s: %w", authorID, err)
		}
		for _, story := range stories {
			if !story.Expired(now) {
				out = append(out, story)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ---------------------------------------------------------------- notifications

func notificationKey(recipientID, notificationID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"recipientId":    sAV(recipientID),
		"notificationId": sAV(notificationID),
	}
}

func (s *DynamoStore) PutNotification(ctx context.Context, n *models.Notification) error {
	return s.Dynamo.PutItem(ctx, s.Tables.NotificationsTable, n)
}

func (s *DynamoStore) ListNotifications(ctx context.Context, recipientID string, limit int, unreadOnly bool) ([]models.Notification, error) {
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.Tables.NotificationsTable),
		IndexName:                 aws.String(models.NotificationCreatedIndex),
		KeyConditionExpression:    aws.String("recipientId = :r"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":r": sAV(recipientID)},
		ScanIndexForward:          aws.Bool(false),
	}
	if unreadOnly {
		input.FilterExpression = aws.String("#read = :false")
		input.ExpressionAttributeNames = map[string]string{"#read": "read"}
		input.ExpressionAttributeValues[":false"] = boolAV(false)
	}

	var out []models.Notification
	if err := s.Dynamo.QueryAll(ctx, input, limit, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *DynamoStore) MarkNotificationRead(ctx context.Context, recipientID, notificationID string) (bool, error) {
	err := s.Dynamo.UpdateItem(ctx, UpdateRequest{
		Table:      s.Tables.NotificationsTable,
		Key:        notificationKey(recipientID, notificationID),
		Update:     "SET #read = :true",
		Condition:  "attribute_exists(notificationId) AND #read = :false",
		Names:      map[string]string{"#read": "read"},
		Values:     map[string]types.AttributeValue{":true": boolAV(true), ":false": boolAV(false)},
		ReturnNone: true,
	}, nil)
	if errors.Is(err, errConditionFailed) {
		var n models.Notification
		if getErr := s.Dynamo.GetItem(ctx, s.Tables.NotificationsTable, notificationKey(recipientID, notificationID), &n); getErr != nil {
			if errors.Is(getErr, ErrNotFound) {
				return false, notFound("notification", notificationID)
			}
			return false, getErr
		}
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *DynamoStore) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int, error) {
	unread, err := s.ListNotifications(ctx, recipientID, 0, true)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, n := range unread {
		ok, err := s.MarkNotificationRead(ctx, recipientID, n.NotificationID)
		if err != nil {
			return changed, err
		}
		if ok {
			changed++
		}
	}
	return changed, nil
}

func (s *DynamoStore) CountUnread(ctx context.Context, recipientID string) (int, error) {
	return s.Dynamo.CountQuery(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.Tables.NotificationsTable),
		KeyConditionExpression:    aws.String("recipientId = :r"),
		FilterExpression:          aws.String("#read = :false"),
		ExpressionAttributeNames:  map[string]string{"#read": "read"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":r": sAV(recipientID), ":false": boolAV(false)},
	})
}

func (s *DynamoStore) DeleteNotification(ctx context.Context, recipientID, notificationID string) error {
	err := s.Dynamo.DeleteItem(ctx, s.Tables.NotificationsTable,
		notificationKey(recipientID, notificationID),
		"attribute_exists(notificationId)", nil)
	if errors.Is(err, errConditionFailed) {
		return notFound("notification", notificationID)
	}
	return err
}
