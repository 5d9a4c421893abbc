package prompts

import (
	_ "embed"
)

//go:embed system.txt
var SystemTemplate string

//go:embed schedule_task.txt
var ScheduleTaskTemplate string
