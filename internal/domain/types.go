package domain

// Issue is the GitLab issue shape this service reads. Optional fields stay
// pointers so a null in the API payload is distinguishable from zero.
type Issue struct {
    ID        int64      `json:"id"`
    IID       int64      `json:"iid"`
    Title     string     `json:"title"`
    State     string     `json:"state"`
    Labels    []string   `json:"labels"`
    Assignees []Assignee `json:"assignees"`
    Weight    *int       `json:"weight"`
    TimeStats TimeStats  `json:"time_stats"`
    Milestone *Milestone `json:"milestone"`
    Epic      *Epic      `json:"epic"`
    Links     IssueLinks `json:"_links"`
}

type Assignee struct {
    Name string `json:"name"`
}

type TimeStats struct {
    TimeEstimate   *int `json:"time_estimate"`
    TotalTimeSpent *int `json:"total_time_spent"`
}

type Milestone struct {
    Title string `json:"title"`
}

type Epic struct {
    Title string `json:"title"`
}

type IssueLinks struct {
    Self string `json:"self"`
}

const (
    StateOpened = "opened"
    StateClosed = "closed"

    NoMilestone = "No Milestone"
    NoEpic      = "No Epic"
)

// Open reports whether the issue still counts toward estimate/weight tallies.
func (i Issue) Open() bool { return i.State == StateOpened }

type Iteration struct {
    ID        int64  `json:"id"`
    Title     string `json:"title"`
    StartDate string `json:"start_date"`
    DueDate   string `json:"due_date"`
}

type Release struct {
    TagName    string `json:"tag_name"`
    ReleasedAt string `json:"released_at"`
}

type LabelEvent struct {
    Action string      `json:"action"`
    Label  *EventLabel `json:"label"`
    User   EventUser   `json:"user"`
}

type EventLabel struct {
    Name string `json:"name"`
}

type EventUser struct {
    Name string `json:"name"`
}

// Team maps a report name to the membership label carried by its issues.
type Team struct {
    Name        string `yaml:"name"`
    Label       string `yaml:"label"`
    ReleaseInfo bool   `yaml:"release_info"`
    Activity    bool   `yaml:"activity"`
}

// Tally is an open-vocabulary counter: keys are whatever label, user,
// milestone or epic values the current scrape observed.
type Tally map[string]int

func (t Tally) Add(key string, n int) { t[key] += n }

// Tallies is the output of one aggregation pass. Every map is keyed by the
// raw observed value; the scalar totals follow the same open/null rules as
// the per-key tallies.
type Tallies struct {
    Issues int

    OverallWeight            int
    OverallTimeSpentHours    int
    OverallTimeEstimateHours int

    WeightByUser       Tally
    TimeSpentByUser    Tally
    TimeEstimateByUser Tally
    TicketsByUser      Tally
    CompletedByUser    Tally

    StatusByLabel   Tally
    CategoryByLabel Tally
    PriorityByLabel Tally
    SeverityByLabel Tally

    WeightByLabel       Tally
    TimeSpentByLabel    Tally
    TimeEstimateByLabel Tally

    ByMilestone Tally
    ByEpic      Tally
}

func NewTallies() *Tallies {
    return &Tallies{
        WeightByUser:        Tally{},
        TimeSpentByUser:     Tally{},
        TimeEstimateByUser:  Tally{},
        TicketsByUser:       Tally{},
        CompletedByUser:     Tally{},
        StatusByLabel:       Tally{},
        CategoryByLabel:     Tally{},
        PriorityByLabel:     Tally{},
        SeverityByLabel:     Tally{},
        WeightByLabel:       Tally{},
        TimeSpentByLabel:    Tally{},
        TimeEstimateByLabel: Tally{},
        ByMilestone:         Tally{},
        ByEpic:              Tally{},
    }
}

// TeamCounts carries the iteration-vs-backlog issue counts per team.
type TeamCounts struct {
    Iteration int
    Backlog   int
}

type ReleaseInfo struct {
    Project   string
    Current   string
    Date      string
    ShortDate string
    Total     int
}

// Snapshot is the complete result of one scrape. The publisher replaces all
// previously exported series with exactly this content.
type Snapshot struct {
    Iteration string
    Overall   *Tallies
    Teams     map[string]*Tallies
    Counts    map[string]TeamCounts
    Release   *ReleaseInfo
    Activity  map[string]Tally
}
