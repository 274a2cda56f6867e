package models

// ✅ Visibility policies for posts and stories
const (
	VisibilityPublic       = "public"
	VisibilityFollowers    = "followers"
	VisibilityCloseFriends = "close_friends"
	VisibilityPrivate      = "private"
	VisibilityOnlyMe       = "only_me"
)

// ✅ Social edge kinds (directed: fromId -> toId)
const (
	EdgeFollows     = "follows"
	EdgeBlocked     = "blocked"
	EdgeCloseFriend = "close_friend"
)

// ✅ Notification types
const (
	NotificationLike    = "like"
	NotificationComment = "comment"
	NotificationFollow  = "follow"
	NotificationMention = "mention"
	NotificationMessage = "message"
	NotificationStory   = "story"
	NotificationLive    = "live"
	NotificationPost    = "post"
	NotificationShare   = "share"
)

// ✅ Engagement actions accepted by the tracker
const (
	ActionLike    = "like"
	ActionDislike = "dislike"
	ActionSave    = "save"
	ActionShare   = "share"
	ActionView    = "view"
	ActionComment = "comment"
)

// ✅ Engagement targets
const (
	TargetContent = "content"
	TargetStory   = "story"
)

// ✅ Media and content types
const (
	MediaImage = "image"
	MediaVideo = "video"

	ContentTypeText     = "text"
	ContentTypePhoto    = "photo"
	ContentTypeVideo    = "video"
	ContentTypeCarousel = "carousel"
)

// ✅ Media limits
const (
	MaxMediaItems           = 10
	MaxVideoDurationSeconds = 60
	MaxImageDurationSeconds = 15
)
