package generation

import "fmt"

const quizTemplate = `Generate a quiz on %s for a grade %d student. Create %d questions.
Return a JSON object with a key called 'questions', which contains a list of questions.
Each question should have:
- 'question' (the question text)
- 'correct_answers' (a list of 3 possible correct answers)
- 'wrong_response' (an explanation if the answer is wrong)

Example response format:
{
    "questions": [
        {
            "question": "What is the smallest unit of an element?",
            "correct_answers": ["atom", "an atom", "atoms"],
            "wrong_response": "Incorrect. The smallest unit of an element is an atom."
        },
        {
            "question": "How many electrons can the first shell of an atom hold?",
            "correct_answers": ["2", "two", "2 electrons"],
            "wrong_response": "Incorrect. The first shell of an atom can hold only 2 electrons."
        }
    ]
}
Only giving short answer questions and answers are only short answers.
`

const notesTemplate = `Create concise, easy-to-understand, and engaging study notes on %s for a grade %d student.
Make it clear, engaging, and suitable for their level.
Return JSON only:
{
    "notes": "Generated study notes here."
}
Make them detailed and informative.
`

func quizPrompt(r QuizRequest) string {
	return fmt.Sprintf(quizTemplate, r.Topic, r.Grade, r.NumQuestions)
}

func notesPrompt(r NotesRequest) string {
	return fmt.Sprintf(notesTemplate, r.Topic, r.Grade)
}
