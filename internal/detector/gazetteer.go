package detector

// Shipped gazetteer, grouped by frequency class. Class 0 names are
// the most common and score highest. The list is a curated head of a
// much larger census-derived set; operators can swap in a full list
// at startup via LoadNames.
var firstNamesByClass = [3][]string{
	{
		"james", "john", "robert", "michael", "william", "david", "richard",
		"joseph", "thomas", "charles", "christopher", "daniel", "matthew",
		"anthony", "donald", "steven", "paul", "andrew", "joshua", "kenneth",
		"kevin", "brian", "george", "timothy", "ronald", "edward", "jason",
		"jeffrey", "ryan", "jacob", "gary", "nicholas", "eric", "jonathan",
		"stephen", "larry", "justin", "scott", "brandon", "benjamin",
		"samuel", "gregory", "alexander", "frank", "patrick", "raymond",
		"jack", "dennis", "jerry", "tyler", "aaron", "jose", "adam",
		"nathan", "henry", "douglas", "zachary", "peter", "kyle", "ethan",
		"walter", "noah", "jeremy", "keith", "roger", "terry", "sean",
		"gerald", "carl", "harold", "dylan", "arthur", "lawrence", "jordan",
		"jesse", "bryan", "billy", "joe", "bruce", "gabriel", "logan",
		"albert", "willie", "alan", "juan", "wayne", "elijah", "randy",
		"roy", "vincent", "ralph", "eugene", "russell", "bobby", "mason",
		"philip", "louis", "harry", "liam", "dave", "mary", "patricia",
		"jennifer", "linda", "elizabeth", "barbara", "susan", "jessica",
		"sarah", "karen", "lisa", "nancy", "betty", "sandra", "margaret",
		"ashley", "kimberly", "emily", "donna", "michelle", "carol",
		"amanda", "melissa", "deborah", "stephanie", "dorothy", "rebecca",
		"sharon", "laura", "cynthia", "amy", "kathleen", "angela",
		"shirley", "brenda", "emma", "anna", "pamela", "nicole", "samantha",
		"katherine", "christine", "helen", "debra", "rachel", "carolyn",
		"janet", "maria", "olivia", "heather", "catherine", "diane",
		"julie", "victoria", "joyce", "lauren", "kelly", "christina",
		"ruth", "joan", "virginia", "judith", "evelyn", "hannah", "andrea",
		"megan", "cheryl", "jacqueline", "madison", "sophia", "teresa",
		"abigail", "sara", "janice", "martha", "gloria", "kathryn", "ann",
		"isabella", "judy", "charlotte", "julia", "alice", "jean", "denise",
		"frances", "danielle", "marilyn", "natalie", "beverly", "diana",
		"brittany", "theresa", "kayla", "alexis", "doris", "lori",
		"tiffany",
	},
	{
		"aiden", "blake", "bradley", "brent", "brett", "calvin", "carlos",
		"cesar", "chad", "clarence", "clayton", "clifford", "clinton",
		"cody", "colin", "corey", "craig", "curtis", "dale", "damian",
		"darrell", "darren", "dean", "derek", "derrick", "devin", "dominic",
		"donovan", "dustin", "earl", "edgar", "edwin", "eli", "elliot",
		"emmanuel", "enrique", "erik", "ernest", "evan", "felix",
		"fernando", "finn", "francis", "franklin", "frederick", "gavin",
		"geoffrey", "gilbert", "glenn", "gordon", "gustavo", "harvey",
		"hector", "herbert", "howard", "hugh", "hugo", "ian", "isaac",
		"ivan", "jared", "javier", "jay", "jeff", "jeremiah", "jerome",
		"jim", "jimmy", "joel", "johnny", "jon", "jorge", "julian", "julio",
		"karl", "kelvin", "ken", "kirk", "kurt", "lee", "leo", "leon",
		"leonard", "lewis", "lloyd", "lucas", "luis", "luke", "malcolm",
		"manuel", "marco", "marcus", "mario", "martin", "marvin", "maurice",
		"max", "micah", "miguel", "mike", "mitchell", "nathaniel", "neil",
		"nelson", "oliver", "omar", "oscar", "owen", "pablo", "pedro",
		"perry", "phillip", "preston", "quentin", "rafael", "ramon",
		"randall", "raul", "ricardo", "rick", "ricky", "roberto", "rodney",
		"ronnie", "ross", "ruben", "sam", "santiago", "sebastian", "sergio",
		"seth", "shane", "shawn", "sidney", "simon", "spencer", "stanley",
		"stuart", "ted", "theodore", "tim", "todd", "tom", "tommy", "tony",
		"travis", "trevor", "tristan", "troy", "victor", "warren", "wesley",
		"xavier", "abby", "alexandra", "alicia", "allison", "alyssa",
		"amelia", "ana", "anita", "annette", "audrey", "ava", "bethany",
		"bianca", "bonnie", "bridget", "brooke", "caitlin", "camila",
		"carla", "carmen", "caroline", "cassandra", "cecilia", "chelsea",
		"chloe", "claire", "clara", "claudia", "colleen", "courtney",
		"dana", "daphne", "darlene", "deanna", "dolores", "eileen",
		"elaine", "eleanor", "elena", "ella", "ellen", "erica", "erin",
		"esther", "eva", "felicia", "fiona", "gabriela", "gabrielle",
		"gail", "genevieve", "gina", "gladys", "gretchen", "gwendolyn",
		"hailey", "heidi", "ingrid", "irene", "isabel", "jackie", "jamie",
		"jane", "janelle", "jasmine", "jeanette", "jenna", "jenny", "jill",
		"jillian", "joanna", "joanne", "jocelyn", "josephine", "juanita",
		"juliana", "juliet", "kara", "karina", "kate", "katie", "katrina",
		"kendra", "kristen", "kristin", "kristina", "kylie", "lana", "leah",
		"lena", "leslie", "lillian", "lindsay", "lindsey", "lorraine",
		"lucille", "lucy", "lydia", "lynn", "mackenzie", "madeline",
		"marcia", "marie", "marissa", "marjorie", "maureen", "melanie",
		"melinda", "meredith", "mia", "mildred", "miranda", "miriam",
		"molly", "monica", "monique", "morgan", "nadia", "naomi", "natasha",
		"nina", "nora", "norma", "olga", "paige", "paula", "pauline",
		"peggy", "penelope", "phoebe", "phyllis", "priscilla", "ramona",
		"regina", "renee", "rhonda", "rita", "roberta", "rosa", "roxanne",
		"sabrina", "sadie", "sally", "selena", "serena", "shannon",
		"sheila", "shelby", "sonia", "stacey", "stacy", "stella", "sue",
		"suzanne", "sylvia", "tamara", "tammy", "tanya", "tara", "terri",
		"tessa", "tina", "tonya", "tracy", "valerie", "vanessa", "vera",
		"veronica", "vivian", "wanda", "wendy", "whitney", "yolanda",
		"yvonne", "zoe",
	},
	{
		"alberto", "alfonso", "alfredo", "alton", "amos", "anders",
		"archie", "arnold", "aubrey", "barry", "bennie", "bernard", "bert",
		"boyd", "brendan", "buford", "cameron", "cecil", "cedric",
		"chester", "claude", "clifton", "clyde", "conrad", "cornelius",
		"dallas", "delbert", "dewey", "dominick", "dwight", "elbert",
		"elmer", "emil", "emmett", "ernesto", "ervin", "everett", "floyd",
		"forrest", "freddie", "garrett", "garry", "gerard", "gilberto",
		"grady", "guillermo", "harlan", "herman", "hollis", "homer",
		"horace", "hubert", "ignacio", "ira", "irving", "jasper",
		"jermaine", "kendall", "kennith", "lamar", "lanny", "lionel",
		"lonnie", "lowell", "luther", "lyle", "mack", "merle", "morton",
		"moses", "myron", "norbert", "orville", "otis", "pascal", "quincy",
		"reginald", "reuben", "rex", "rodolfo", "rogelio", "roosevelt",
		"rosco", "rufus", "salvador", "santos", "saul", "seymour",
		"sheldon", "silas", "sterling", "sylvester", "thaddeus", "virgil",
		"wallace", "wilbert", "wilbur", "wilfred", "winston", "adele",
		"adeline", "agatha", "agnes", "althea", "antoinette", "beatrice",
		"bernadette", "bertha", "beulah", "blanche", "celia", "cora",
		"cordelia", "cornelia", "della", "edith", "edna", "effie",
		"eloise", "elsie", "enid", "ethel", "eula", "eunice", "fannie",
		"fern", "flossie", "freda", "geneva", "georgina", "gertrude",
		"goldie", "greta", "harriet", "hattie", "henrietta", "hilda",
		"imogene", "ina", "inez", "iona", "irma", "isadora", "josefina",
		"lenora", "leona", "leticia", "lettie", "lillie", "lottie",
		"louella", "lucinda", "mabel", "mamie", "marcella", "matilda",
		"maxine", "millicent", "minerva", "minnie", "mona", "muriel",
		"myrna", "myrtle", "nellie", "nettie", "odessa", "opal", "ophelia",
		"pansy", "petra", "polly", "prudence", "ramona", "rosalind",
		"rosetta", "sybil", "thelma", "ursula", "velma", "vesta", "viola",
		"wilhelmina", "wilma", "winifred", "zelda", "zelma",
	},
}

// commonWords suppresses gazetteer entries that are also everyday
// English words; matching those as names drowns the signal in false
// positives.
var commonWords = []string{
	"will", "bill", "mark", "grace", "rose", "dawn", "iris", "amber",
	"april", "may", "june", "august", "daisy", "crystal", "hope", "faith",
	"joy", "ivy", "jade", "lily", "holly", "hazel", "pearl", "penny",
	"robin", "ruby", "sandy", "sherry", "violet", "autumn", "summer",
	"ginger", "olive", "angel", "melody", "harmony", "destiny", "guy",
	"wade", "chase", "lance", "gene", "glen", "grant", "ray", "art",
	"drew", "cliff", "clay", "chance", "laurel", "marina", "sonny",
	"honey", "king", "queen", "precious", "rusty", "storm", "sky",
	"rain", "winter", "hunter", "tanner", "carter", "piper", "brook",
}
