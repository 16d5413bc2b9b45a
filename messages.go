package classgate

import (
	"fmt"
	"time"
)

type message struct {
	subject string
	body    string
}

func registrationMessage(code string, ttl time.Duration) message {
	return message{
		subject: "Your classgate verification code",
		body: fmt.Sprintf("Your code to finish signing up is: %s\n\nThis code is valid for %s.",
			code, humanDuration(ttl)),
	}
}

func joinApprovalMessage(classroom Classroom, studentEmail, code string, ttl time.Duration) message {
	name := classroom.Name
	if name == "" {
		name = classroom.ID
	}
	return message{
		subject: fmt.Sprintf("Join request for %s", name),
		body: fmt.Sprintf("%s asked to join %s.\n\nShare this code with them to approve: %s\n\n"+
			"The code is valid for %s. Ignore this message to reject the request.",
			studentEmail, name, code, humanDuration(ttl)),
	}
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
