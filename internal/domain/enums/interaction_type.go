package enums

type InteractionType string

const (
	InteractionTypeLike          InteractionType = "like"
	InteractionTypeDislike       InteractionType = "dislike"
	InteractionTypeQuickMessage  InteractionType = "quick_message"
	InteractionTypeFriendRequest InteractionType = "friend_request"
	InteractionTypeBlock         InteractionType = "block"
)
