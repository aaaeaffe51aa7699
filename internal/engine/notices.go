package engine

// Service messages sent by the engine itself.
const (
	noticeApology         = "🚫 I can't answer right now. A filter may have kicked in or the limits ran out. Try rephrasing."
	noticeBanned          = "Well, well. Looks like you've been blocked in this chat. Use /clear or switch to another chat with /slot."
	noticeSpam            = "Hey, spamming isn't nice! 😠 Wait until I finish."
	noticeBusy            = "⏳ Please wait, I'm still thinking..."
	noticeNothingToCancel = "Nothing to cancel."

	noticeUnexpectedDocument = "I can only read files during /import."
	noticeUnknownCommand     = "Unknown command. Send /help for the list."

	noticeStarted = "The conversation has started (chat 1/8). Send /help to see the settings."
	noticeHelp    = `Commands:
/start - start chatting
/clear - clear the current chat
/slot N - switch to chat N (1-8)
/slots - list chats
/bio - set your biography
/character - set the persona's character
/narrator - set a narrator goal
/model [name] - show or choose the model
/reminders on|off - idle reminders
/debug - toggle debug mode
/export - download the current chat
/import - restore a chat from a file
/diary - show the persona's notes
/stats - show relationship stats
/time - sync your local time
/forget_time - forget your local time
/cancel - cancel the current input`

	noticeAskBio        = "Tell me your biography (up to %d characters). Send \"erase\" to remove it or /cancel to abort."
	noticeAskCharacter  = "Describe the persona's character (up to %d characters). Send \"erase\" to reset it or /cancel to abort."
	noticeAskNarrator   = "How should the dialogue go? (up to %d characters)\n\nSend \"erase\" to disable the narrator or /cancel to abort."
	noticeAskImport     = "Send the JSON file to import. /cancel aborts."
	noticeTextExpected  = "Please send text, or /cancel to abort."
	noticeTooLong       = "❌ Too long (more than %d characters). Try again."
	noticeBioSaved      = "✅ Biography saved. The current chat was reset so it takes effect."
	noticeBioErased     = "✅ Biography erased. The chat was cleared."
	noticeBioCanceled   = "✅ Biography input canceled."
	noticeCharSaved     = "✅ Character changed. The current chat was reset so I can get into the role."
	noticeCharErased    = "✅ Character reset to the default. The chat was cleared."
	noticeCharCanceled  = "✅ Character input canceled."
	noticeNarrSaved     = "✅ Narrator enabled. The current chat was reset so it takes effect."
	noticeNarrErased    = "✅ Narrator disabled. The chat was cleared."
	noticeNarrCanceled  = "✅ Narrator setup canceled."
	noticeImportCancel  = "✅ Import canceled."
	noticeImportFile    = "Please send a file, or /cancel to abort."
	noticeImportNotJSON = "❌ The file must be JSON. Try again or send /cancel."
	noticeImportStarted = "⏳ Got the file, checking and importing..."
	noticeImportBadForm = "❌ The file structure doesn't match. Make sure it was exported from this bot."
	noticeImportFailed  = "🚫 The file could not be read. It may be damaged. Import canceled."
	noticeImportDone    = "✅ Chat imported. Your dialogue and relationship are restored."
	noticeExportFailed  = "🚫 The export file could not be created."

	noticeCleared       = "Chat %d cleared 🗑️."
	noticeSwitched      = "You switched to chat %d."
	noticeSlotBlocked   = "This chat is blocked."
	noticeSlotUsage     = "Usage: /slot N, where N is 1-8."
	noticeSlotsPick     = "Reply with a chat number to switch to it."
	noticeModelsPick    = "Reply with a number to choose a model."
	noticeModelActive   = "This model is already active!"
	noticeModelChanged  = "✅ Model changed to %s."
	noticeModelUnknown  = "Unknown model. Available: %s"
	noticeRemindersOn   = "✅ Reminders enabled."
	noticeRemindersOff  = "✅ Reminders disabled."
	noticeRemindersHelp = "Reminders are %s. Use /reminders on or /reminders off."
	noticeDebugOn       = "✅ Debug mode enabled."
	noticeDebugOff      = "☑️ Debug mode disabled."
	noticeDiaryEmpty    = "My head is empty so far... at least about this chat."
	noticeDiaryHeader   = "Persona's thoughts (chat %d):\n\n"
	noticeTimeNoURL     = "🚫 Server configuration error: the web app URL is not set. Time sync is unavailable."
	noticeTimeLink      = "Open this page so I know your local date and time:\n%s"
	noticeTimeForgot    = "OK, I forgot your time zone."
	noticeTimeUnset     = "Your time zone isn't set. Use /time."
	noticeTimeSynced    = "Great! ✨ Your time zone is set. Now I know when it's morning for you and when it's night."

	noticeNoPreview    = "This sticker has no preview, I can't look at it :("
	noticeImageTooBig  = "🖼️ This picture or sticker is too big. Try something smaller."
	noticeMediaFailed  = "🚫 Something went wrong... I can't look at this."
	noticeNoAnimations = "🚫 I can't look at animations right now."
	noticeVoiceTooBig  = "This voice message is too long. Try a shorter one."
	noticeListening    = "🎙️ Listening to your voice message, one moment..."
	noticeVoiceUnclear = "Hmm, I couldn't make that out. Try re-recording or write it as text."
	noticeVoiceFailed  = "🚫 Your voice message could not be processed. Please try again."
)

// Default prompts for media turns without a caption.
const (
	promptSticker         = "The user sent this sticker. Reply to it in the context of the conversation: was it sent just like that or to underline the situation?"
	promptAnimatedSticker = "The user sent this animated sticker. Consider the recent messages and reply to it."
	promptPhoto           = "Consider the recent messages and reply to this photo. Describe the picture only if the context calls for it."
	promptAnimation       = "The user sent this GIF. Describe your reaction to it."
	promptTranscribe      = "Transcribe this voice message verbatim, in its original language. Keep slang, profanity, fillers, " +
		"repetitions and hesitations exactly as spoken, and do not censor, correct or summarise anything. " +
		"Mark unintelligible parts as [unintelligible] and background noise as [noise]. " +
		"Output only the transcript, with no comments."
)
