package logging

const (
	// KeyError is the key for an error attribute.
	KeyError = `err`

	// KeyDal is the key for the data access layer name.
	KeyDal = `dal`

	// KeyGuild is the key for a guild ID.
	KeyGuild = `guild`

	// KeyChannel is the key for a channel ID.
	KeyChannel = `channel`

	// KeyUser is the key for a user ID.
	KeyUser = `user`

	// KeyComponent is the key for the component name.
	KeyComponent = `component`
)
