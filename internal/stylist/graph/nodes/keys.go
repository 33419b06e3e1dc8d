package nodes

// Conversation graph node keys. Keys double as the node labels carried by
// node_start/node_end stream events.
const (
	NodeInputGuard       = "InputGuard"
	NodeBlockedResponder = "BlockedResponder"
	NodeClassifier       = "Classifier"
	NodeStylistAssembler = "StylistAssembler"
	NodeStylistChatModel = "StylistChatModel"
	NodeRecommendBridge  = "RecommendBridge"
	NodeOutfitAnalyzer   = "OutfitAnalyzer"
	NodeOutputGuard      = "OutputGuard"
	NodeResponder        = "Responder"
)

// Recommender graph node keys.
const (
	NodeAnalyzeQuery  = "AnalyzeQuery"
	NodeFetchProfile  = "FetchProfile"
	NodeSearchCatalog = "SearchCatalog"
	NodeVerifyResults = "VerifyResults"
	NodeRefineQuery   = "RefineQuery"
	NodeComposeReply  = "ComposeReply"
)
