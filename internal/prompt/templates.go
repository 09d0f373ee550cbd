package prompt

var (
	recsysFields   = []string{"thought", "track_id", "message"}
	reactionFields = []string{"thought", "goal_progress_assessment", "message"}
)

// Persona generators.
var (
	ProfileQuery = mustTemplate("profile_query", "v1.0",
		"Infer the listener's taste from liked tracks and given demographics.",
		[]string{"age_group", "country", "gender", "preferred_language"},
		[]string{"preferred_musical_culture", "top_1_artist", "top_1_genre"},
	)

	ConversationGoalPt1 = mustTemplate("conversation_goal_pt1", "v1.0",
		"Introduce the goal sampling task.",
		[]string{"number_of_conversation_goals"},
		nil,
	)

	ConversationGoalPt2 = mustTemplate("conversation_goal_pt2", "v1.0",
		"Choose one allowed goal and fill it in as YAML.",
		[]string{"conversation_goal_templates"},
		[]string{
			"category_code",
			"category_description",
			"specificity_code",
			"specificity_description",
			"listener_goal",
			"listener_expertise",
			"initial_query_example_1",
			"initial_query_example_2",
			"iteration_query_example_1",
			"iteration_query_example_2",
			"achieved_query_example_1",
			"achieved_query_example_2",
			"target_turn_count",
		},
	)
)

// Recommender persona.
var (
	RecsysSystem = mustTemplate("recsys_system", "v1.0",
		"System instruction of the recommender.",
		nil, nil,
	)

	RecsysInitPt1 = mustTemplate("recsys_init_pt1", "v1.0",
		"Seed context header carrying the listener profile.",
		[]string{"listener_profile"}, nil,
	)

	RecsysInitPt2 = mustTemplate("recsys_init_pt2", "v1.0",
		"Seed context footer following the recommendation pool.",
		nil, nil,
	)

	RecsysTurn = mustTemplate("recsys_turn", "v1.1",
		"Ask for the next recommendation.",
		[]string{"turn_num", "used_track_ids", "remaining_track_ids", "listener_message", "preferred_language"},
		recsysFields,
	)
)

// Listener persona.
var (
	ListenerSystem = mustTemplate("listener_system", "v1.0",
		"System instruction of the listener, bound to a profile and goal.",
		[]string{"listener_profile", "conversation_goal"}, nil,
	)

	ListenerInit = mustTemplate("listener_init", "v1.0",
		"Seed context footer following the liked tracks.",
		nil, nil,
	)

	ListenerOpening = mustTemplate("listener_opening", "v1.0",
		"Opening request copied from an initial query example.",
		[]string{"initial_query_examples", "listener_goal", "preferred_language"},
		[]string{"thought", "message"},
	)

	ReactionTurn2 = mustTemplate("reaction_turn_2", "v1.0",
		"Reaction to the first recommendation.",
		[]string{"turn_num", "title", "artist", "album", "recsys_message", "preferred_language"},
		reactionFields,
	)

	ReactionTurnN = mustTemplate("reaction_turn_n", "v1.0",
		"Reaction to later recommendations.",
		[]string{"turn_num", "title", "artist", "album", "recsys_message", "preferred_language"},
		reactionFields,
	)
)

// LLM judges over saved conversations.
var (
	JudgeGoalPlausibility = mustTemplate("judge_goal_plausibility", "v1.0",
		"Is the goal achievable with the recommendation pool.",
		[]string{"conversation_goal", "recommendation_pool_content"},
		[]string{"plausibility_score"},
	)

	JudgeGoalProgress = mustTemplate("judge_goal_progress", "v1.0",
		"Are the listener's goal progress labels accurate.",
		[]string{"conversation_goal", "conversation_turns", "recommended_tracks_content", "goal_progress_assessment"},
		[]string{"accuracy_score"},
	)

	JudgeThought = mustTemplate("judge_thought", "v1.0",
		"Thought coherence of both personas.",
		[]string{"conversation_turns"},
		[]string{"listener_coherence_score", "recsys_coherence_score"},
	)

	JudgeMessage = mustTemplate("judge_message", "v1.0",
		"Message quality, helpfulness and factual accuracy of both personas.",
		[]string{"conversation_goal", "conversation_turns", "listener_profile", "recommended_tracks_content"},
		[]string{"listener_quality_score", "recsys_quality_score", "listener_helpfulness_score", "recsys_accuracy_score"},
	)

	JudgeTrackRelevance = mustTemplate("judge_track_relevance", "v1.0",
		"Relevance of each recommendation to the listener's request.",
		[]string{"conversation_goal", "conversation_turns", "recommended_tracks_content"},
		[]string{"recommendation_score"},
	)
)
