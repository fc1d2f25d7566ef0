package bot

// User-facing copy, kept in one place so the wording can be tuned without
// touching handler logic.
const (
	textWelcome = "👋 Hi! This bot lets you talk to strangers anonymously.\n\n" +
		"Pick an option below to get started."
	textMainMenuHint = "Use the buttons below 👇"

	textAskGender = "Who are you?"
	textAskTarget = "Who do you want to talk to?"

	textSearching       = "🔍 Looking for a stranger to connect you with..."
	textMatched         = "✅ You're connected to a stranger. Say hi!\n\nEverything you send is delivered anonymously."
	textAlreadyChatting = "You're already in a chat. End it first if you want a new partner."
	textSearchTimedOut  = "⏰ Nobody turned up this time. Try searching again in a bit."
	textSearchCancelled = "Search cancelled ✅"
	textNotSearching    = "You're not searching right now."
	textNothingToCancel = "Nothing to cancel."

	textChatEnded     = "❌ Chat ended."
	textChatCancelled = "❌ Chat ended. Back to the menu."
	textChatNext      = "⏭ Chat ended. Looking for a new stranger..."
	textChatIdle      = "💤 Chat closed after a long silence."
	textPartnerLeft   = "The stranger has left the chat."
	textNotInChat     = "You're not in a chat right now."

	textThrottled      = "⏳ Slow down a little, please."
	textDeliveryFailed = "⚠️ Your message couldn't be delivered."

	textAnonLinkIntro = "Share this link and anyone who opens it can message you anonymously:\n\n"
	textOwnLink       = "That's your own link. Share it with others so they can message you."
	textLinkOpened    = "✉️ You're writing to %s. Whatever you send next will be delivered anonymously."
	textAnonSent      = "✅ Your anonymous message was sent. Open the link again to send another."
	textAnonNudge     = "📬 You have a new anonymous message! Use /newmsg to read it."
	textNoPending     = "No anonymous messages waiting."
	textPendingHeader = "📩 Anonymous message:\n\n"
	textReplyHint     = "Reply to that message and your answer will be delivered anonymously."
	textReplySent     = "✅ Your reply was sent anonymously."
	textReplyFailed   = "⚠️ Couldn't deliver your reply. The recipient may have blocked the bot."

	textContactAsk = "🎯 Send the numeric ID or @username of the person you want to reach.\n\n" +
		"They must have used this bot before. /cancel to back out."
	textContactSelf      = "You can't send an anonymous message to yourself."
	textContactUnknown   = "I don't know that user. They need to start this bot first."
	textContactFound     = "✅ Got it. Now send the message you want delivered anonymously (text only)."
	textContactTextOnly  = "Text only here, please."
	textContactDelivered = "✅ Delivered anonymously."
	textContactFailed    = "⚠️ Couldn't deliver. The recipient may have blocked the bot."
	textContactIncoming  = "📩 Someone sent you an anonymous message:\n\n"

	textHelp = "This bot connects you to random strangers for anonymous chats.\n\n" +
		"💬 Anonymous chat: get paired with a random stranger.\n" +
		"📨 Anonymous messages: get a personal link; anyone who opens it can write to you anonymously.\n" +
		"🎯 Reach a specific person: send an anonymous message to someone who uses this bot.\n\n" +
		"/cancel stops whatever you're doing.\n" +
		"/newmsg reads the next queued anonymous message."

	textRules = "Rules:\n\n" +
		"1. Be respectful. No harassment, threats or spam.\n" +
		"2. No illegal content.\n" +
		"3. Don't try to deanonymize your partner.\n\n" +
		"Breaking the rules gets you banned."
)
