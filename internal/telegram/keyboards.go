package telegram

// Reply-keyboard button labels. Handlers match incoming message text
// against these, so they live next to the keyboard builders.
const (
	ButtonRandomChat     = "💬 Anonymous chat"
	ButtonNext           = "⏭ Next"
	ButtonEndChat        = "❌ End chat"
	ButtonAnonLink       = "📨 Anonymous messages"
	ButtonSpecialContact = "🎯 Reach a specific person"
)

// Callback data values for the inline flows.
const (
	CallbackSelfMale     = "rand_self_male"
	CallbackSelfFemale   = "rand_self_female"
	CallbackTargetMale   = "rand_target_male"
	CallbackTargetFemale = "rand_target_female"
	CallbackTargetAny    = "rand_target_any"
	CallbackCancelSearch = "rand_cancel_search"
	CallbackHelp         = "help"
	CallbackRules        = "rules"
)

// MainMenuKeyboard is the persistent reply keyboard shown outside a chat.
func MainMenuKeyboard() ReplyKeyboardMarkup {
	return ReplyKeyboardMarkup{
		ResizeKeyboard: true,
		Keyboard: [][]KeyboardButton{
			{{Text: ButtonRandomChat}},
			{{Text: ButtonAnonLink}, {Text: ButtonSpecialContact}},
		},
	}
}

// ChatKeyboard is shown while the user is in an anonymous session.
func ChatKeyboard() ReplyKeyboardMarkup {
	return ReplyKeyboardMarkup{
		ResizeKeyboard: true,
		Keyboard: [][]KeyboardButton{
			{{Text: ButtonNext}, {Text: ButtonEndChat}},
		},
	}
}

// GenderKeyboard asks for the user's own gender.
func GenderKeyboard() InlineKeyboardMarkup {
	return InlineKeyboardMarkup{
		InlineKeyboard: [][]InlineKeyboardButton{
			{
				{Text: "Male 🚹", CallbackData: CallbackSelfMale},
				{Text: "Female 🚺", CallbackData: CallbackSelfFemale},
			},
		},
	}
}

// TargetKeyboard asks who the user wants to be connected to.
func TargetKeyboard() InlineKeyboardMarkup {
	return InlineKeyboardMarkup{
		InlineKeyboard: [][]InlineKeyboardButton{
			{{Text: "Connect me to a guy 🚹", CallbackData: CallbackTargetMale}},
			{{Text: "Connect me to a girl 🚺", CallbackData: CallbackTargetFemale}},
			{{Text: "Doesn't matter 🎲", CallbackData: CallbackTargetAny}},
		},
	}
}

// CancelSearchKeyboard offers a single cancel button while searching.
func CancelSearchKeyboard() InlineKeyboardMarkup {
	return InlineKeyboardMarkup{
		InlineKeyboard: [][]InlineKeyboardButton{
			{{Text: "Cancel search ❌", CallbackData: CallbackCancelSearch}},
		},
	}
}
